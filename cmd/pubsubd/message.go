package main

import "log/slog"

// message is the demo payload pubsubd forwards: spec.md's topicExtractor
// is fixed to its Topics field for this CLI-facing daemon. A real embedder
// would supply its own message type and extractor to node.New directly.
type message struct {
	Topics []string `json:"topics"`
	Body   string   `json:"body"`
}

func messageTopics(m message) []string { return m.Topics }

// logHandle delivers by logging — pubsubd has no outward subscriber
// protocol of its own (spec.md §1 treats that gateway as an external
// collaborator), so the one built-in subscriber just makes delivery
// observable for pubsubctl.
type logHandle struct {
	id string
}

func (h logHandle) Deliver(m message, replyTo string) {
	slog.Info("pubsub delivery", "handle", h.id, "topics", m.Topics, "body", m.Body, "reply-to", replyTo)
}
