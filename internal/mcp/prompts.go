package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("build_landing_page",
		mcp.WithPromptDescription("Guide through building a landing page from sections, rows and content blocks"),
		mcp.WithArgument("topic",
			mcp.ArgumentDescription("What the landing page is about"),
			mcp.RequiredArgument(),
		),
	), s.handleLandingPagePrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("adapt_for_mobile",
		mcp.WithPromptDescription("Review a document and add tablet and mobile style overrides"),
		mcp.WithArgument("documentId",
			mcp.ArgumentDescription("Document to adapt"),
			mcp.RequiredArgument(),
		),
	), s.handleAdaptForMobilePrompt)
}

func (s *Server) handleLandingPagePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	topic := req.Params.Arguments["topic"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Build a landing page for: %s", topic),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Build a landing page about "%s". Follow these steps:

1. Call list_components to see which component types exist and where they may be placed
2. Use create_document with a fitting name; it becomes the active document
3. Add a hero section (add_block "section"), then a heading, a text and a button inside it
4. Add a features section with a row holding three columns, each with a heading and a text
5. Fill in real copy with update_block_props and adjust spacing with update_block_styles
6. Finish with a footer section and call save_document with label "first draft"

Sections can only be root blocks and columns only live inside rows. Check the tree with get_document_tree when in doubt; undo reverts any mistake.`, topic),
				},
			},
		},
	}, nil
}

func (s *Server) handleAdaptForMobilePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	documentID := req.Params.Arguments["documentId"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Adapt document %s for smaller screens", documentID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Adapt document %s for tablet and mobile screens:

1. Call open_document, then get_document_tree to read the current blocks and their styles
2. For each block whose desktop styles use large font sizes, paddings or fixed widths, call update_block_styles with device "tablet" and then "mobile" and smaller values
3. Rows should stack on mobile: set flexDirection to column for device "mobile"
4. Use set_device and set_preview_mode to review the result, then save_document with label "responsive pass"

Only override what needs to change; narrower devices fall back to the wider styles.`, documentID),
				},
			},
		},
	}, nil
}
