package rank

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"parking-rank/internal/geo"
)

// 导出列；distance 按显示单位，其余数值以最短无损形式写出
var exportHeader = []string{"rank", "segment_id", "street", "distance", "unit", "score", "supply", "estimated_available", "lat", "lon"}

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// 文档注释：导出排序结果为 CSV
// 约束：score 与 rank 原样写出，可由 ReadCSV 无损读回；distance 为显示单位下的值。
func WriteCSV(w io.Writer, rs []Result, unit geo.Unit) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, r := range rs {
		row := []string{
			strconv.Itoa(r.Rank),
			strconv.Itoa(r.SegmentID),
			r.Street,
			fmtFloat(unit.FromMiles(r.Distance)),
			string(unit),
			fmtFloat(r.Score),
			fmtFloat(r.Supply),
			fmtFloat(r.EstimatedAvailable),
			fmtFloat(r.Position.Lat),
			fmtFloat(r.Position.Lon),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// 文档注释：读回 WriteCSV 的输出
// 约束：distance 按行内 unit 换回英里；列顺序必须与导出一致。
func ReadCSV(r io.Reader) ([]Result, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read export header: %w", err)
	}
	if len(header) != len(exportHeader) {
		return nil, fmt.Errorf("export header has %d columns, want %d", len(header), len(exportHeader))
	}
	var out []Result
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read export line %d: %w", line, err)
		}
		res, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("export line %d: %w", line, err)
		}
		out = append(out, res)
	}
}

func parseRow(row []string) (Result, error) {
	var res Result
	var err error
	if res.Rank, err = strconv.Atoi(row[0]); err != nil {
		return res, fmt.Errorf("rank: %w", err)
	}
	if res.SegmentID, err = strconv.Atoi(row[1]); err != nil {
		return res, fmt.Errorf("segment_id: %w", err)
	}
	res.Street = row[2]
	unit, ok := geo.ParseUnit(row[4])
	if !ok {
		return res, fmt.Errorf("unit: unknown %q", row[4])
	}
	nums := make([]float64, 0, 6)
	for _, i := range []int{3, 5, 6, 7, 8, 9} {
		v, err := strconv.ParseFloat(row[i], 64)
		if err != nil {
			return res, fmt.Errorf("%s: %w", exportHeader[i], err)
		}
		nums = append(nums, v)
	}
	res.Distance = unit.ToMiles(nums[0])
	res.Score = nums[1]
	res.Supply = nums[2]
	res.EstimatedAvailable = nums[3]
	res.Position = geo.Point{Lat: nums[4], Lon: nums[5]}
	return res, nil
}
