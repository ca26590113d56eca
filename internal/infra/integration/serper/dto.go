package serper

type searchRequest struct {
	Q    string `json:"q"`
	Num  int    `json:"num,omitempty"`
	Page int    `json:"page,omitempty"`
	GL   string `json:"gl,omitempty"`
	HL   string `json:"hl,omitempty"`
	TBS  string `json:"tbs,omitempty"`
}

type searchResponse struct {
	Organic []organicResult `json:"organic"`
}

type organicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}
