package generator

import "time"

// Spec describes the article to generate.
type Spec struct {
	Topic       string
	Outline     []string
	Words       int
	Constraints []string
	// Date stamps dated content such as the daily memo. Zero means now.
	Date time.Time
}

// Draft is the generated article in Markdown form.
type Draft struct {
	Title    string `json:"title"`
	Digest   string `json:"digest"`
	Markdown string `json:"markdown"`
}
