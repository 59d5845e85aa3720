// Package llm adapts the generative backend to the pipeline's
// InferenceClient port.
package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

type GenAIClient struct {
	client    *genai.Client
	modelName string
}

// NewGenAIClient creates an InferenceClient backed by Vertex AI (Gemini).
func NewGenAIClient(ctx context.Context, projectID, location, modelName string) (*GenAIClient, error) {
	if projectID == "" || location == "" {
		return nil, fmt.Errorf("projectID and location are required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &GenAIClient{client: client, modelName: modelName}, nil
}

// Invoke implements domain.InferenceClient.
func (c *GenAIClient) Invoke(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error) {
	topP := float32(0.9)
	outputTokens := int32(8192)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       &temperature,
		TopP:              &topP,
		MaxOutputTokens:   outputTokens,
	}

	contents := []*genai.Content{genai.NewContentFromText(userPrompt, genai.RoleUser)}

	res, err := c.client.Models.GenerateContent(ctx, c.modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("model returned empty text")
	}
	return text, nil
}
