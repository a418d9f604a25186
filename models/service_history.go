package models

import "time"

// HistoryParams 描述查询历史分析记录的参数（书签分页）
type HistoryParams struct {
	Symbol string `json:"symbol"` // 为空时返回全部标的
	Cursor int64  `json:"cursor"` // 返回 id 小于 cursor 的记录，0 表示从最新开始
	Limit  int    `json:"limit"`  // 每页数量，默认 20，最大 200
}

func (p HistoryParams) Normalized() HistoryParams {
	switch {
	case p.Limit <= 0:
		p.Limit = 20
	case p.Limit > 200:
		p.Limit = 200
	}
	return p
}

// AnalysisRecord 表示持久化的一次分析结果
type AnalysisRecord struct {
	ID             int64          `json:"id"`
	RunID          string         `json:"run_id"`
	Symbol         string         `json:"symbol"`
	Recommendation Recommendation `json:"recommendation"`
	RiskLevel      RiskLevel      `json:"risk_level"`
	UsedModelPath  bool           `json:"used_model_path"`
	Succeeded      bool           `json:"succeeded"`
	Payload        Result         `json:"payload"`
	CreatedAt      time.Time      `json:"created_at"`
}
