package admin

import (
	"context"

	"github.com/cellmesh/cellmesh/internal/actor"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ListCellsArgs are the arguments for the list_cells tool. It takes none.
type ListCellsArgs struct{}

// CellInfo describes one actor's address and lifecycle state.
type CellInfo struct {
	Path  string `json:"path"`
	State string `json:"state"`
}

// ListCellsResult is the result of the list_cells tool.
type ListCellsResult struct {
	Cells []CellInfo `json:"cells"`
}

func (s *Server) handleListCells(ctx context.Context,
	req *mcp.CallToolRequest, args ListCellsArgs) (*mcp.CallToolResult, ListCellsResult, error) {

	var cells []CellInfo
	var walk func(actor.CellSnapshot)
	walk = func(c actor.CellSnapshot) {
		cells = append(cells, CellInfo{
			Path:  c.Path.String(),
			State: c.State.String(),
		})
		for _, child := range c.Children {
			walk(child)
		}
	}
	walk(s.node.Snapshot())

	return nil, ListCellsResult{Cells: cells}, nil
}

// TreeArgs are the arguments for the tree tool. It takes none.
type TreeArgs struct{}

// TreeNode is one node of the supervision tree, recursively.
type TreeNode struct {
	Path     string     `json:"path"`
	State    string     `json:"state"`
	Children []TreeNode `json:"children,omitempty"`
}

// TreeResult is the result of the tree tool.
type TreeResult struct {
	Root TreeNode `json:"root"`
}

func (s *Server) handleTree(ctx context.Context,
	req *mcp.CallToolRequest, args TreeArgs) (*mcp.CallToolResult, TreeResult, error) {

	return nil, TreeResult{Root: toTreeNode(s.node.Snapshot())}, nil
}

func toTreeNode(c actor.CellSnapshot) TreeNode {
	node := TreeNode{
		Path:  c.Path.String(),
		State: c.State.String(),
	}
	for _, child := range c.Children {
		node.Children = append(node.Children, toTreeNode(child))
	}
	return node
}

// DeadLettersArgs are the arguments for the dead_letters tool.
type DeadLettersArgs struct {
	// Limit caps how many of the most recent letters are returned. Zero
	// or negative means "all retained", currently up to 256.
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of the most recent letters to return, oldest first"`
}

// DeadLetterRecord is one retained dead-letter entry.
type DeadLetterRecord struct {
	Path    string `json:"path"`
	Reason  string `json:"reason"`
	Sender  string `json:"sender,omitempty"`
	Message string `json:"message"`
}

// DeadLettersResult is the result of the dead_letters tool.
type DeadLettersResult struct {
	Letters []DeadLetterRecord `json:"letters"`
}

func (s *Server) handleDeadLetters(ctx context.Context,
	req *mcp.CallToolRequest, args DeadLettersArgs) (*mcp.CallToolResult, DeadLettersResult, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	letters := s.deadLetters
	if args.Limit > 0 && args.Limit < len(letters) {
		letters = letters[len(letters)-args.Limit:]
	}

	out := make([]DeadLetterRecord, len(letters))
	copy(out, letters)

	return nil, DeadLettersResult{Letters: out}, nil
}
