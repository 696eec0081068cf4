package models

// Requests for forecast HTTP endpoints. Defined in domain for consistency and reuse.

type RunRequest struct {
	Targets []string `query:"targets" json:"targets"`
}

type SelectionRequest struct {
	Target string `query:"target" json:"target" validate:"required"`
	Freq   string `query:"freq" json:"freq" default:"daily" validate:"oneof=daily weekly"`
}

type ScoresRequest struct {
	Target string `query:"target" json:"target" validate:"required"`
	Freq   string `query:"freq" json:"freq" default:"daily" validate:"oneof=daily weekly"`
	Series string `query:"series" json:"series"`
}

type ForecastRequest struct {
	Target string `query:"target" json:"target" validate:"required"`
	Freq   string `query:"freq" json:"freq" default:"daily" validate:"oneof=daily weekly"`
	Series string `query:"series" json:"series" validate:"required"`
}
