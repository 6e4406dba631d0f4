package contracts

// Gate 정의 (SSOT)
// 모든 로그, 응답 키, 노트에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   identity → fundamentals → business_context(non-blocking) → market_data → macro
//   → valuation → market_structure → impairment → sizing → verdict

// Stage names one gate of the pipeline
type Stage string

const (
	// StageIdentity G0: 자유 입력 → ticker/CIK
	StageIdentity Stage = "identity"

	// StageFundamentals 재무 데이터 (SEC companyfacts)
	StageFundamentals Stage = "fundamentals"

	// StageBusinessFilings 사업 보고서 원문 (SEC submissions + 10-K)
	StageBusinessFilings Stage = "business_filings"

	// StageBusinessContext G1: 사업 맥락 분류 (non-blocking)
	StageBusinessContext Stage = "business_context"

	// StageMarketData 가격/거래량 지표
	StageMarketData Stage = "market_data"

	// StageMacro 금리/신용 스트레스 (FRED)
	StageMacro Stage = "macro"

	// StageValuation G2: 결정론적 밸류에이션
	StageValuation Stage = "valuation"

	// StageMarketStructure G3: 시장 구조 분류 (non-veto)
	StageMarketStructure Stage = "market_structure"

	// StageImpairment G4: 영구 손상 위험 분류
	StageImpairment Stage = "impairment"

	// StageSizing G5: 포지션 사이징
	StageSizing Stage = "sizing"

	// StageVerdict G6: 최종 판정
	StageVerdict Stage = "verdict"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated gate name (e.g., "G0", "G2")
func (s Stage) ShortName() string {
	switch s {
	case StageIdentity:
		return "G0"
	case StageBusinessFilings, StageBusinessContext:
		return "G1"
	case StageValuation:
		return "G2"
	case StageMarketStructure:
		return "G3"
	case StageImpairment:
		return "G4"
	case StageSizing:
		return "G5"
	case StageVerdict:
		return "G6"
	case StageFundamentals, StageMarketData, StageMacro:
		return "DATA"
	default:
		return "UNKNOWN"
	}
}

// Description returns a human readable description of the stage
func (s Stage) Description() string {
	switch s {
	case StageIdentity:
		return "Identity resolution"
	case StageFundamentals:
		return "Fundamentals fetch"
	case StageBusinessFilings:
		return "Business filings fetch"
	case StageBusinessContext:
		return "Business context classification"
	case StageMarketData:
		return "Market data fetch"
	case StageMacro:
		return "Macro fetch"
	case StageValuation:
		return "Valuation"
	case StageMarketStructure:
		return "Market structure classification"
	case StageImpairment:
		return "Impairment risk classification"
	case StageSizing:
		return "Position sizing"
	case StageVerdict:
		return "Final verdict"
	default:
		return "Unknown"
	}
}

// Blocking reports whether an ERROR from this stage halts the pipeline.
// Business context is advisory input only; everything else is fatal.
func (s Stage) Blocking() bool {
	switch s {
	case StageBusinessFilings, StageBusinessContext:
		return false
	default:
		return true
	}
}

// AllStages returns all pipeline stages in execution order
func AllStages() []Stage {
	return []Stage{
		StageIdentity,
		StageFundamentals,
		StageBusinessFilings,
		StageBusinessContext,
		StageMarketData,
		StageMacro,
		StageValuation,
		StageMarketStructure,
		StageImpairment,
		StageSizing,
		StageVerdict,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}
