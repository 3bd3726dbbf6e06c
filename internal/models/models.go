package models

// Joke is one entry of the joke list. Text keeps the API's "joke" key so a
// persisted list reads like the payload it came from.
type Joke struct {
	ID     string `json:"id"`
	Text   string `json:"joke"`
	Votes  int    `json:"votes"`
	Locked bool   `json:"locked"`
}

// IDs returns the ids of jokes in order.
func IDs(jokes []Joke) []string {
	ids := make([]string, len(jokes))
	for i, j := range jokes {
		ids[i] = j.ID
	}
	return ids
}

// Clone returns an independent copy of jokes.
func Clone(jokes []Joke) []Joke {
	if jokes == nil {
		return nil
	}
	dup := make([]Joke, len(jokes))
	copy(dup, jokes)
	return dup
}
