package util

import "errors"

var (
	ErrNoExtractableText = errors.New("no extractable text found in PDF")

	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrSourceRead           = errors.New("source read failed")
	ErrStoreInit            = errors.New("progress store init failed")
	ErrExtractionTransport  = errors.New("extraction transport failed")
	ErrResponseParse        = errors.New("extraction response parse failed")
	ErrPersistence          = errors.New("progress persistence failed")
)
