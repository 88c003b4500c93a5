package models

// CRMCredentials represents stored CRM login data. Counselors typically
// have a single credential set per CRM host; the security answer covers
// the secondary challenge some deployments present after login.
type CRMCredentials struct {
	ID             string `json:"id" badgerhold:"key"`
	Name           string `json:"name"`     // human-readable label
	BaseURL        string `json:"base_url"` // CRM root, e.g. https://apply.example.edu/manage/
	Username       string `json:"username"`
	Password       string `json:"password"`
	SecurityAnswer string `json:"security_answer,omitempty"`
	Cookies        []byte `json:"cookies,omitempty"` // serialized session cookies from the last login
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

// Masked returns a copy safe to expose over the API
func (c CRMCredentials) Masked() CRMCredentials {
	masked := c
	masked.Password = mask(c.Password)
	masked.SecurityAnswer = mask(c.SecurityAnswer)
	masked.Cookies = nil
	return masked
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
