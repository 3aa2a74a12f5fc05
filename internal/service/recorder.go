package service

// OutcomeRecorder receives business outcomes for instrumentation.
// *metrics.Metrics satisfies it.
type OutcomeRecorder interface {
	RecordRecommendation(source, outcome string)
	RecordSignup(ok bool)
	RecordLogin(ok bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordRecommendation(string, string) {}
func (nopRecorder) RecordSignup(bool)                   {}
func (nopRecorder) RecordLogin(bool)                    {}

func recorderOrNop(r OutcomeRecorder) OutcomeRecorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
