package risk

import "time"

// Level buckets a score into a categorical risk level.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelModerate Level = "MODERATE"
	LevelHigh     Level = "HIGH"
	LevelVeryHigh Level = "VERY_HIGH"
)

// Deduction is one itemized subtraction from the starting score.
type Deduction struct {
	Factor string `json:"factor"`
	Points int    `json:"points"`
	Detail string `json:"detail"`
}

// Input is everything the scorer looks at. Missing data is not an error;
// it simply earns the corresponding deduction, so scoring always produces
// a result.
type Input struct {
	HasVerification    bool
	RegistrationActive bool
	RegisteredAt       *time.Time
	DirectorCount      int
	InvestmentCount    int
	ReportedRevenue    float64
	EmailVerified      bool
	Now                time.Time
}

// Assessment is a scored snapshot of a company's risk posture.
type Assessment struct {
	Score      int         `json:"score"`
	Level      Level       `json:"level"`
	Deductions []Deduction `json:"deductions"`
}

// Score applies the deduction table to a starting 100 and clamps the total
// to [0, 100]. It is a pure function; it reads nothing and writes nothing.
func Score(input Input) Assessment {
	var deductions []Deduction
	deduct := func(factor string, points int, detail string) {
		deductions = append(deductions, Deduction{Factor: factor, Points: points, Detail: detail})
	}

	if !input.HasVerification {
		deduct("registry_verification_missing", 35, "no company registry verification record")
	} else {
		if !input.RegistrationActive {
			deduct("registration_not_active", 20, "registry status is not active")
		}
		if input.DirectorCount == 0 {
			deduct("no_directors", 15, "no director records listed")
		}
	}

	if input.RegisteredAt != nil {
		now := input.Now
		if now.IsZero() {
			now = time.Now()
		}
		years := now.Sub(*input.RegisteredAt).Hours() / (24 * 365)
		switch {
		case years < 1:
			deduct("company_age", 15, "company is less than 1 year old")
		case years < 3:
			deduct("company_age", 10, "company is less than 3 years old")
		case years < 5:
			deduct("company_age", 5, "company is less than 5 years old")
		}
	}

	switch {
	case input.InvestmentCount == 0:
		deduct("no_investments", 20, "no prior investment records")
	case input.InvestmentCount < 3:
		deduct("few_investments", 20-input.InvestmentCount*7, "fewer than 3 prior investments")
	}

	if input.ReportedRevenue <= 0 {
		deduct("no_revenue", 15, "no reported revenue")
	}
	if !input.EmailVerified {
		deduct("email_unverified", 15, "business email not verified")
	}

	score := 100
	for _, d := range deductions {
		score -= d.Points
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return Assessment{Score: score, Level: levelFor(score), Deductions: deductions}
}

func levelFor(score int) Level {
	switch {
	case score >= 80:
		return LevelLow
	case score >= 60:
		return LevelModerate
	case score >= 40:
		return LevelHigh
	default:
		return LevelVeryHigh
	}
}
