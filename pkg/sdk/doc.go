// Package episodes is a Go client for the episodes index endpoint.
//
//	client, _ := episodes.New("http://localhost:8000")
//	ack, _ := client.SubmitIndex(ctx, strings.NewReader(`{"ep": 1}`))
//	list, err := client.Index(ctx)
//	if errors.Is(err, episodes.ErrNotFound) {
//	    // nothing published yet
//	}
package episodes
