package contracts

// Pipeline Stage 정의 (SSOT)
// 모든 로그, run log row에서 이 상수를 사용해야 함
//
// B1 파이프라인 흐름:
//   CONFIG → UNIVERSE → QUICK_FILTER → DETAIL → VERIFY → HISTORY → EVALUATE → PERSIST

// Stage represents a B1 pipeline stage
type Stage string

const (
	// StageTagConfig: 태그 설정 로드
	// 위치: internal/tagconfig/
	StageTagConfig Stage = "B1_TAG_CONFIG"

	// StageUniverse: 활성 종목 캐시
	// 위치: internal/s1_universe/
	StageUniverse Stage = "B1_UNIVERSE"

	// StageQuickFilter: 기술 팩터 기반 1차 필터 (J, MACD-DIF)
	// 위치: internal/selection/
	StageQuickFilter Stage = "B1_QUICK_FILTER"

	// StageDetail: 후보 종목 상세 데이터 조회
	// 위치: internal/s0_data/
	StageDetail Stage = "B1_DETAIL"

	// StageVerify: 상세 데이터로 필터 재검증
	// 위치: internal/selection/
	StageVerify Stage = "B1_VERIFY"

	// StageHistory: 과거 N일 시세 조회
	// 위치: internal/s0_data/
	StageHistory Stage = "B1_HISTORY"

	// StageEvaluate: plus/minus 태그 평가 + 점수/등급
	// 위치: internal/s2_signals/
	StageEvaluate Stage = "B1_EVALUATE"

	// StagePersist: 날짜 단위 delete-then-insert 저장
	// 위치: internal/data/repos/
	StagePersist Stage = "B1_PERSIST"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// Description returns a short description of the stage
func (s Stage) Description() string {
	switch s {
	case StageTagConfig:
		return "태그 설정 로드"
	case StageUniverse:
		return "활성 종목 유니버스"
	case StageQuickFilter:
		return "팩터 1차 필터"
	case StageDetail:
		return "상세 데이터 조회"
	case StageVerify:
		return "필터 재검증"
	case StageHistory:
		return "과거 시세 조회"
	case StageEvaluate:
		return "태그 평가/점수"
	case StagePersist:
		return "결과 저장"
	default:
		return "알 수 없음"
	}
}

// StageResult records input/output counts of one executed stage
type StageResult struct {
	Stage       Stage  `json:"stage"`
	InputCount  int    `json:"input_count"`
	OutputCount int    `json:"output_count"`
	Duration    int64  `json:"duration_ms"`
	Error       string `json:"error,omitempty"`
}
