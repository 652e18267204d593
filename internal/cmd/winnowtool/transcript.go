package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lightmill/winnow/internal/history"
)

// loadTranscript reads a JSON transcript file into a conversation.
func loadTranscript(path string) (history.Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}
	var conv history.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("parsing transcript: %w", err)
	}
	return conv, nil
}

// writeTranscript writes a conversation back out as indented JSON.
func writeTranscript(path string, conv history.Conversation) (int, error) {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encoding transcript: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("writing transcript: %w", err)
	}
	return len(data), nil
}
