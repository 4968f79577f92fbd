package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"pagebuilder/internal/blocks"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/session"
)

func (s *Server) registerBlockTools() {
	// ── add_block ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_block",
		mcp.WithDescription("Add a block of a registered component type. Props and styles start from the component defaults."),
		mcp.WithString("componentType",
			mcp.Description("Component type, see list_components"),
			mcp.Required(),
		),
		mcp.WithString("parentId", mcp.Description("Parent block ID (optional, omit for a root block)")),
		mcp.WithNumber("index", mcp.Description("Order among the siblings (optional, appends if omitted)")),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
	), s.handleAddBlock)

	// ── remove_block ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("remove_block",
		mcp.WithDescription("Remove a block and all of its descendants. Can be reverted with undo."),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRemoveBlock)

	// ── move_block ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("move_block",
		mcp.WithDescription("Move a block under a new parent. A block cannot be moved into its own subtree."),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithString("parentId", mcp.Description("New parent block ID (omit to make it a root block)")),
		mcp.WithNumber("index", mcp.Description("Order among the new siblings (optional, appends if omitted)")),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
	), s.handleMoveBlock)

	// ── update_block_props ─────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_block_props",
		mcp.WithDescription("Merge props into a block. Keys not given are kept."),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithObject("props", mcp.Description("Props to set, e.g. {\"text\": \"Hello\"}"), mcp.Required()),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
	), s.handleUpdateBlockProps)

	// ── update_block_styles ────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_block_styles",
		mcp.WithDescription("Merge style properties into a block's style map for one device class"),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithObject("styles", mcp.Description("Style properties, e.g. {\"fontSize\": \"24px\"}"), mcp.Required()),
		mcp.WithString("device",
			mcp.Description("Device class (optional, defaults to the active device)"),
			mcp.Enum(string(domain.DeviceDesktop), string(domain.DeviceTablet), string(domain.DeviceMobile)),
		),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
	), s.handleUpdateBlockStyles)

	// ── update_block ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_block",
		mcp.WithDescription("Replace whole fields of a block: props, styles (all devices) and/or order"),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithObject("props", mcp.Description("New props, replacing the old ones")),
		mcp.WithObject("styles", mcp.Description("New styles: {\"desktop\": {...}, \"tablet\": {...}, \"mobile\": {...}}")),
		mcp.WithNumber("order", mcp.Description("New order among the siblings")),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
	), s.handleUpdateBlock)

	// ── duplicate_block ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("duplicate_block",
		mcp.WithDescription("Copy a block (without its children) next to the original"),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
	), s.handleDuplicateBlock)

	// ── clear_all ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("clear_all",
		mcp.WithDescription("Remove every block of the document. Can be reverted with undo."),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleClearAll)

	// ── update_global_styles ───────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_global_styles",
		mcp.WithDescription("Merge document-wide style properties for one device class"),
		mcp.WithObject("styles", mcp.Description("Style properties"), mcp.Required()),
		mcp.WithString("device",
			mcp.Description("Device class (optional, defaults to the active device)"),
			mcp.Enum(string(domain.DeviceDesktop), string(domain.DeviceTablet), string(domain.DeviceMobile)),
		),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
	), s.handleUpdateGlobalStyles)

	// ── update_settings ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("update_settings",
		mcp.WithDescription("Change document settings. spacing, typography and colors are merged key by key."),
		mcp.WithString("containerWidth", mcp.Description("Container width, e.g. 1200px")),
		mcp.WithObject("spacing", mcp.Description("Spacing tokens")),
		mcp.WithObject("typography", mcp.Description("Typography tokens")),
		mcp.WithObject("colors", mcp.Description("Color tokens")),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
	), s.handleUpdateSettings)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleAddBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	componentType, err := requireString(req, "componentType")
	if err != nil {
		return nil, err
	}
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	b, err := sess.AddBlock(componentType, req.GetString("parentId", ""), getIndex(req.GetArguments()))
	if err != nil {
		return nil, fmt.Errorf("add block: %w", err)
	}
	return jsonResult(b)
}

func (s *Server) handleRemoveBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	blockID, err := requireString(req, "blockId")
	if err != nil {
		return nil, err
	}
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	if err := sess.RemoveBlock(blockID); err != nil {
		return nil, fmt.Errorf("remove block: %w", err)
	}
	return textResult(fmt.Sprintf("Block %s removed", blockID)), nil
}

func (s *Server) handleMoveBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	blockID, err := requireString(req, "blockId")
	if err != nil {
		return nil, err
	}
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	if err := sess.MoveBlock(blockID, req.GetString("parentId", ""), getIndex(req.GetArguments())); err != nil {
		return nil, fmt.Errorf("move block: %w", err)
	}
	b, _ := sess.Block(blockID)
	return jsonResult(b)
}

func (s *Server) handleUpdateBlockProps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	blockID, err := requireString(req, "blockId")
	if err != nil {
		return nil, err
	}
	props, err := getObject(req.GetArguments(), "props")
	if err != nil {
		return nil, err
	}
	if props == nil {
		return nil, fmt.Errorf("props is required")
	}
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	if err := sess.UpdateBlockProps(blockID, props); err != nil {
		return nil, fmt.Errorf("update props: %w", err)
	}
	b, _ := sess.Block(blockID)
	return jsonResult(b)
}

func (s *Server) handleUpdateBlockStyles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	blockID, err := requireString(req, "blockId")
	if err != nil {
		return nil, err
	}
	styles, err := getObject(req.GetArguments(), "styles")
	if err != nil {
		return nil, err
	}
	if styles == nil {
		return nil, fmt.Errorf("styles is required")
	}
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	device := domain.Device(req.GetString("device", ""))
	if err := sess.UpdateBlockStyles(blockID, device, styles); err != nil {
		return nil, fmt.Errorf("update styles: %w", err)
	}
	b, _ := sess.Block(blockID)
	return jsonResult(b)
}

func (s *Server) handleUpdateBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	blockID, err := requireString(req, "blockId")
	if err != nil {
		return nil, err
	}
	args := req.GetArguments()

	var p blocks.Patch
	if p.Props, err = getObject(args, "props"); err != nil {
		return nil, err
	}
	if raw, err := getObject(args, "styles"); err != nil {
		return nil, err
	} else if raw != nil {
		styles, err := decodeStyles(raw)
		if err != nil {
			return nil, err
		}
		p.Styles = &styles
	}
	if v, ok := args["order"].(float64); ok {
		order := int(v)
		p.Order = &order
	}
	if p.Props == nil && p.Styles == nil && p.Order == nil {
		return nil, fmt.Errorf("nothing to update: pass props, styles or order")
	}

	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	if err := sess.UpdateBlock(blockID, p); err != nil {
		return nil, fmt.Errorf("update block: %w", err)
	}
	b, _ := sess.Block(blockID)
	return jsonResult(b)
}

func (s *Server) handleDuplicateBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	blockID, err := requireString(req, "blockId")
	if err != nil {
		return nil, err
	}
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	dup, err := sess.DuplicateBlock(blockID)
	if err != nil {
		return nil, fmt.Errorf("duplicate block: %w", err)
	}
	return jsonResult(dup)
}

func (s *Server) handleClearAll(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	sess.ClearAll()
	return textResult(fmt.Sprintf("All blocks of %s removed", sess.ID())), nil
}

func (s *Server) handleUpdateGlobalStyles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	styles, err := getObject(req.GetArguments(), "styles")
	if err != nil {
		return nil, err
	}
	if styles == nil {
		return nil, fmt.Errorf("styles is required")
	}
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	if err := sess.UpdateGlobalStyles(domain.Device(req.GetString("device", "")), styles); err != nil {
		return nil, fmt.Errorf("update global styles: %w", err)
	}
	return jsonResult(sess.ExportBuilderData().GlobalStyles)
}

func (s *Server) handleUpdateSettings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	var (
		p   session.SettingsPatch
		err error
	)
	if w, ok := args["containerWidth"].(string); ok && w != "" {
		p.ContainerWidth = &w
	}
	if p.Spacing, err = getObject(args, "spacing"); err != nil {
		return nil, err
	}
	if p.Typography, err = getObject(args, "typography"); err != nil {
		return nil, err
	}
	if p.Colors, err = getObject(args, "colors"); err != nil {
		return nil, err
	}

	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	if err := sess.UpdateSettings(p); err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}
	return jsonResult(sess.ExportBuilderData().Settings)
}

// decodeStyles converts a {"desktop": {...}, ...} object into DeviceStyles.
// Unknown device keys are rejected.
func decodeStyles(raw map[string]any) (domain.DeviceStyles, error) {
	for k := range raw {
		if !domain.Device(k).Valid() {
			return domain.DeviceStyles{}, fmt.Errorf("styles: %w: %q", blocks.ErrInvalidDevice, k)
		}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return domain.DeviceStyles{}, fmt.Errorf("styles: %w", err)
	}
	var out domain.DeviceStyles
	if err := json.Unmarshal(data, &out); err != nil {
		return domain.DeviceStyles{}, fmt.Errorf("styles: %w", err)
	}
	return out, nil
}
