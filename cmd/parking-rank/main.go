// 命令行工具：一次性解析起点并输出停车路段排名（表格或 CSV）
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"parking-rank/internal/api"
	"parking-rank/internal/config"
	"parking-rank/internal/errs"
	"parking-rank/internal/geo"
	"parking-rank/internal/geocode"
	"parking-rank/internal/logger"
	"parking-rank/internal/rank"
	"parking-rank/internal/region"
	"parking-rank/internal/spatial"
)

func main() {
	cfg := config.Load()
	d := cfg.Defaults
	var (
		data    = flag.String("data", cfg.DataPath, "dataset path (.csv or .json)")
		index   = flag.String("index", string(cfg.IndexKind), "spatial index: kdtree|geohash|linear")
		q       = flag.String("q", "", "origin as address / place name, or \"lat, lon\" with -kind coordinates")
		kind    = flag.String("kind", "address", "input kind for -q: address|coordinates|map-click")
		lat     = flag.Float64("lat", math.NaN(), "origin latitude")
		lon     = flag.Float64("lon", math.NaN(), "origin longitude")
		preset  = flag.String("preset", "", "preset origin name (see -presets)")
		alpha   = flag.Float64("alpha", d.Alpha, "distance penalty strength")
		beta    = flag.Float64("beta", d.Beta, "distance decay exponent")
		radius  = flag.Float64("radius", d.Radius, "search radius in -unit")
		unit    = flag.String("unit", string(d.Unit), "distance unit: mi|ft")
		top     = flag.Int("top", d.TopN, "number of results")
		csvOut  = flag.Bool("csv", false, "write CSV export to stdout")
		ai      = flag.String("ai", "", "free-form request, e.g. \"pier 39, half a mile, top 3\"")
		presets = flag.Bool("presets", false, "list preset origins and exit")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := cfg.LogLevel
	if *verbose {
		level = "debug"
	}
	logger.SetupTo(os.Stderr, level, cfg.LogFmt)

	v := region.Default()
	if *presets {
		for _, p := range v.Presets() {
			fmt.Printf("%-24s %s\n", p.Name, p.Point)
		}
		return
	}

	u, ok := geo.ParseUnit(*unit)
	if !ok {
		fail(errs.InvalidParameter("unit", "must be mi or ft, got %q", *unit))
	}
	p := rank.Params{Alpha: *alpha, Beta: *beta, Radius: *radius, Unit: u, TopN: *top}
	if err := p.Validate(); err != nil {
		fail(err)
	}
	ik, err := spatial.ParseKind(*index)
	if err != nil {
		fail(err)
	}

	eng := rank.NewEngine(v.Box())
	rep, err := eng.Reload(*data, ik)
	if err != nil {
		fail(err)
	}
	if rep.Dropped > 0 {
		fmt.Fprintf(os.Stderr, "loaded %d segments (%d rows dropped: no coordinates)\n", rep.Kept, rep.Dropped)
	}

	m := geocode.NewManager(cfg.GeocodeTimeout, cfg.ProviderHBEvery)
	if api.RegisterGeocoders(m, cfg) == 0 {
		fmt.Fprintln(os.Stderr, "warning: no geocoders configured; only presets, aliases and coordinates resolve")
	}
	// 命令行总是带规则回退，离线也能用 -ai
	cfg.IntentFallback = true
	svc := &api.Service{
		Engine:         eng,
		Resolver:       geocode.NewResolver(v, nil, m),
		Manager:        m,
		Intent:         api.BuildExtractor(cfg, v),
		Defaults:       p,
		ResolveTimeout: cfg.ResolveTimeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ResolveTimeout+cfg.IntentTimeout)
	defer cancel()

	var origin geocode.Origin
	if *ai != "" {
		_, origin, p, err = svc.Interpret(ctx, *ai, p)
	} else {
		spec := api.OriginSpec{Preset: *preset, Text: strings.TrimSpace(*q)}
		if spec.Kind, err = geocode.ParseKind(*kind); err != nil {
			fail(err)
		}
		if !math.IsNaN(*lat) || !math.IsNaN(*lon) {
			if math.IsNaN(*lat) || math.IsNaN(*lon) {
				fail(errs.InvalidParameter("lat", "-lat and -lon must be given together"))
			}
			spec.Point = &geo.Point{Lat: *lat, Lon: *lon}
		}
		origin, err = svc.ResolveOrigin(ctx, spec)
	}
	if err != nil {
		fail(err)
	}

	rs, err := eng.Rank(ctx, origin.Position, p)
	if err != nil {
		fail(err)
	}
	if *csvOut {
		if err := rank.WriteCSV(os.Stdout, rs, p.Unit); err != nil {
			fail(err)
		}
		return
	}
	printTable(origin, p, rs)
}

func printTable(o geocode.Origin, p rank.Params, rs []rank.Result) {
	fmt.Printf("origin: %s %s [%s]\n", o.Label, o.Position, o.Source)
	fmt.Printf("alpha=%g beta=%g radius=%g %s top=%d\n\n", p.Alpha, p.Beta, p.Radius, p.Unit, p.TopN)
	if len(rs) == 0 {
		fmt.Println("no parking segments within the search radius")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSTREET\tDISTANCE\tSCORE\tSUPPLY\tEST. AVAILABLE")
	for _, r := range rs {
		street := r.Street
		if strings.TrimSpace(street) == "" {
			street = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%.0f\t%.1f\n", r.Rank, street, p.Unit.Format(r.Distance), r.Score, r.Supply, r.EstimatedAvailable)
	}
	_ = tw.Flush()
}

func fail(err error) {
	code := 1
	switch {
	case errors.Is(err, errs.ErrInvalidParameter):
		code = 2
	case errors.Is(err, errs.ErrOutOfRegion), errors.Is(err, errs.ErrResolutionFailed):
		code = 3
	case errors.Is(err, errs.ErrServiceUnavailable):
		code = 4
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(code)
}
