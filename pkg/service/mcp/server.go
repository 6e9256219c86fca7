package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hiroq/engram/pkg/memory"
	"github.com/hiroq/engram/pkg/model"
)

const defaultRecallLimit = 5

type recallSimilarParams struct {
	Text  string `json:"text" jsonschema:"Text to find semantically similar prior exchanges for"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of exchanges to return (default 5)"`
}

type recallRecentParams struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of exchanges to return (default 5)"`
}

// Server exposes memory recall as MCP tools over stdio.
type Server struct {
	memory *memory.Memory
	server *mcp.Server
}

// New creates an MCP server over the given memory.
func New(mem *memory.Memory) *Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "engram",
		Version: "1.0.0",
	}, nil)

	s := &Server{
		memory: mem,
		server: server,
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recall_similar",
		Description: "Recall prior exchanges semantically similar to the given text",
	}, s.recallSimilar)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recall_recent",
		Description: "Recall the most recent prior exchanges",
	}, s.recallRecent)

	return s
}

// Run serves MCP requests on stdin/stdout until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) recallSimilar(ctx context.Context, req *mcp.CallToolRequest, params *recallSimilarParams) (*mcp.CallToolResult, any, error) {
	if params.Text == "" {
		return nil, nil, fmt.Errorf("text is required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultRecallLimit
	}

	interactions, err := s.memory.KMostSimilarInputs(ctx, params.Text, limit)
	if err != nil {
		return nil, nil, err
	}
	return s.renderResult(interactions)
}

func (s *Server) recallRecent(ctx context.Context, req *mcp.CallToolRequest, params *recallRecentParams) (*mcp.CallToolResult, any, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultRecallLimit
	}

	return s.renderResult(s.memory.KMostRecent(limit))
}

func (s *Server) renderResult(interactions []*model.Interaction) (*mcp.CallToolResult, any, error) {
	if len(interactions) == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: "No prior exchanges found"},
			},
		}, nil, nil
	}

	var lines []string
	for i, interaction := range interactions {
		prior, err := s.memory.RenderPriorInteraction(interaction)
		if err != nil {
			return nil, nil, err
		}
		lines = append(lines, fmt.Sprintf("%d. [%s] user: %s\n   assistant: %s",
			i+1, prior.CreatedAt.Format("2006-01-02 15:04:05"), prior.UserText, prior.ResponseText))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: strings.Join(lines, "\n")},
		},
	}, nil, nil
}
