package model

// Conference describes an industry event a user may target.
type Conference struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Date           string `json:"date"`
	Location       string `json:"location"`
	Focus          string `json:"focus"`
	Attendees      int    `json:"attendees"`
	Description    string `json:"description"`
	RelevanceScore int    `json:"relevance_score,omitempty"`
}

// BuiltinConferences is the seed catalog served when no research result
// is available. Relevance scores are filled in per request.
func BuiltinConferences() []Conference {
	return []Conference{
		{
			ID:          "himss-2025",
			Name:        "HIMSS Global Health Conference & Exhibition",
			Date:        "2025-03-15 to 2025-03-18",
			Location:    "Las Vegas, NV",
			Focus:       "Health Information Technology",
			Attendees:   45000,
			Description: "World's largest health information technology conference",
		},
		{
			ID:          "aha-2025",
			Name:        "American Hospital Association Annual Membership Meeting",
			Date:        "2025-05-04 to 2025-05-07",
			Location:    "Washington, DC",
			Focus:       "Hospital Administration & Leadership",
			Attendees:   5000,
			Description: "Premier event for hospital and health system leaders",
		},
		{
			ID:          "jp-morgan-2025",
			Name:        "J.P. Morgan Healthcare Conference",
			Date:        "2025-01-13 to 2025-01-16",
			Location:    "San Francisco, CA",
			Focus:       "Healthcare Investment & Innovation",
			Attendees:   9000,
			Description: "Leading healthcare investment conference",
		},
		{
			ID:          "bio-2025",
			Name:        "BIO International Convention",
			Date:        "2025-06-09 to 2025-06-12",
			Location:    "Boston, MA",
			Focus:       "Biotechnology & Life Sciences",
			Attendees:   18000,
			Description: "Global biotechnology partnering conference",
		},
	}
}
