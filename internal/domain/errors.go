package domain

import "errors"

var (
	// ErrNotReady is returned when an operation needs a fitted vectorizer and at least one record.
	ErrNotReady = errors.New("vector store not ready; run ingest first")
	// ErrInvalidState is returned when encoding against a vectorizer that was never fit or loaded.
	ErrInvalidState = errors.New("tfidf embedder not prepared")
	// ErrVectorizerMissing is returned by Load when the vectorizer artifact does not exist.
	ErrVectorizerMissing = errors.New("vectorizer artifact missing")
	// ErrPersistence wraps I/O and decoding failures on store artifacts.
	ErrPersistence = errors.New("persistence failure")
	// ErrExtraction wraps failures to produce text for a single document.
	ErrExtraction = errors.New("extraction failure")
	// ErrNotConfirmed is returned by destructive operations invoked without confirmation.
	ErrNotConfirmed = errors.New("operation not confirmed")
	// ErrEmptyCorpus is returned when an ingest run produced no chunks.
	ErrEmptyCorpus = errors.New("no text chunks found")
)
