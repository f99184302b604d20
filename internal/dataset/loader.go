package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"parking-rank/internal/logger"
	"parking-rank/internal/metrics"
)

// 文档注释：加载报告
// 约束：Dropped 为无可用坐标而丢弃的行数，属于数据质量信息，不影响加载成功与否。
type LoadReport struct {
	Source     string         `json:"source"`
	Rows       int            `json:"rows"`
	Kept       int            `json:"kept"`
	Dropped    int            `json:"dropped"`
	ByStrategy map[string]int `json:"by_strategy"`
	LoadedAt   time.Time      `json:"loaded_at"`
}

// 文档注释：按扩展名加载数据文件（.json 为对象数组，其余按 CSV 处理）
func LoadFile(path string) ([]Segment, LoadReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadReport{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	var segs []Segment
	var rep LoadReport
	if strings.EqualFold(filepath.Ext(path), ".json") {
		segs, rep, err = LoadJSON(f)
	} else {
		segs, rep, err = LoadCSV(f)
	}
	rep.Source = path
	return segs, rep, err
}

// 文档注释：从 CSV 读取记录；首行为表头，空单元格视为缺失
func LoadCSV(r io.Reader) ([]Segment, LoadReport, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, newReport(), nil
		}
		return nil, LoadReport{}, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	var recs []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, LoadReport{}, fmt.Errorf("read csv row %d: %w", len(recs)+1, err)
		}
		rec := make(Record, len(header))
		for i, h := range header {
			if i < len(row) && strings.TrimSpace(row[i]) != "" {
				rec[h] = row[i]
			}
		}
		recs = append(recs, rec)
	}
	segs, rep := Build(recs)
	return segs, rep, nil
}

// 文档注释：从 JSON 对象数组读取记录（Socrata 导出格式）
func LoadJSON(r io.Reader) ([]Segment, LoadReport, error) {
	var raw []map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, LoadReport{}, fmt.Errorf("decode json dataset: %w", err)
	}
	recs := make([]Record, len(raw))
	for i, m := range raw {
		recs[i] = Record(m)
	}
	segs, rep := Build(recs)
	return segs, rep, nil
}

// 文档注释：归一化全部记录，行号即 Segment.ID
// 约束：丢弃行只计数并记录日志，不返回错误。
func Build(recs []Record) ([]Segment, LoadReport) {
	rep := newReport()
	rep.Rows = len(recs)
	segs := make([]Segment, 0, len(recs))
	for i, rec := range recs {
		seg, strategy, ok := Normalize(i, rec)
		if !ok {
			rep.Dropped++
			continue
		}
		rep.ByStrategy[strategy]++
		segs = append(segs, seg)
	}
	rep.Kept = len(segs)
	if rep.Dropped > 0 {
		metrics.DatasetRowsDroppedTotal.WithLabelValues(DropReason).Add(float64(rep.Dropped))
		logger.L().Warn("dataset_rows_dropped", "reason", DropReason, "dropped", rep.Dropped, "rows", rep.Rows)
	}
	logger.L().Info("dataset_normalized", "rows", rep.Rows, "kept", rep.Kept, "by_strategy", rep.ByStrategy)
	return segs, rep
}

func newReport() LoadReport {
	return LoadReport{ByStrategy: map[string]int{}, LoadedAt: time.Now()}
}
