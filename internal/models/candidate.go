package models

// DecisionTag: метка целевого распределения от сервиса решений.
type DecisionTag string

// Candidate: отслеживаемый инструмент и его метка.
type Candidate struct {
	Code string      `mapstructure:"code" yaml:"code"`
	Desc string      `mapstructure:"desc" yaml:"desc"`
	Tag  DecisionTag `mapstructure:"tag" yaml:"tag"`
}

// Codes возвращает коды кандидатов в порядке конфига.
func Codes(cs []Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Code)
	}
	return out
}
