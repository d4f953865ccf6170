package providers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockProviderExtractsQuestionLines(t *testing.T) {
	p := NewMockProvider()
	resp, info, err := p.Generate(context.Background(), GenerateRequest{
		Operation: OperationExtractQuestions,
		Prompt:    "extract",
		Context: []string{
			"Chapter 1\n1. Define velocity.\nSome prose.\nWhat is the unit of force?",
			"What is the unit of force?\nQ2) Calculate the area of a circle of radius 2.",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "mock", info.Name)

	var out struct {
		Questions []struct {
			QuestionText string `json:"question_text"`
			QuestionType string `json:"question_type"`
		} `json:"questions"`
		Total int `json:"total_questions_found"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Text), &out))
	require.Equal(t, 3, out.Total)
	require.Len(t, out.Questions, 3)
	require.Equal(t, "1. Define velocity.", out.Questions[0].QuestionText)
	require.Equal(t, "numerical", out.Questions[2].QuestionType)
}

func TestMockProviderEmptyContextYieldsEmptyList(t *testing.T) {
	resp, _, err := NewMockProvider().Generate(context.Background(), GenerateRequest{Operation: OperationExtractQuestions})
	require.NoError(t, err)
	require.JSONEq(t, `{"questions":[],"summary":"Mock extraction over the supplied pages.","total_questions_found":0}`, resp.Text)
}

func TestMockProviderHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewMockProvider().Generate(ctx, GenerateRequest{Operation: OperationExtractQuestions})
	require.ErrorIs(t, err, context.Canceled)
}
