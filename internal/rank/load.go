package rank

import (
	"fmt"

	"parking-rank/internal/dataset"
	"parking-rank/internal/spatial"
)

// LoadSnapshot 读取数据文件并建立 kind 索引；不替换引擎当前快照
func LoadSnapshot(path string, kind spatial.Kind) (*Snapshot, error) {
	segs, rep, err := dataset.LoadFile(path)
	if err != nil {
		return nil, err
	}
	snap, err := NewSnapshot(segs, kind, rep)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", path, err)
	}
	return snap, nil
}

// Reload 重新加载并原子替换；失败时保留旧快照
func (e *Engine) Reload(path string, kind spatial.Kind) (dataset.LoadReport, error) {
	snap, err := LoadSnapshot(path, kind)
	if err != nil {
		return dataset.LoadReport{}, err
	}
	e.Swap(snap)
	return snap.Report, nil
}
