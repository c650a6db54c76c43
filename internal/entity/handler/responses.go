package handler

import (
	"time"

	"trapper/internal/entity"
	"trapper/internal/graph"
	id "trapper/pkg/domain"
)

// IdentifierResponse is the wire shape of one owned identifier.
type IdentifierResponse struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// PersonResponse is the wire shape of one resolved person record.
type PersonResponse struct {
	ID          string               `json:"id"`
	Kind        string               `json:"kind"`
	DisplayName string               `json:"displayName"`
	Source      string               `json:"source"`
	Skeleton    bool                 `json:"skeleton,omitempty"`
	Redirected  bool                 `json:"redirected,omitempty"`
	Identifiers []IdentifierResponse `json:"identifiers"`
	LastSeenAt  time.Time            `json:"lastSeenAt"`
	CreatedAt   time.Time            `json:"createdAt"`
}

// FromRecord maps an entity with its identifiers to the response shape.
// redirected marks that the requested ID was merged away and the canonical
// record is being returned instead.
func FromRecord(e *entity.Entity, idents []entity.Identifier, redirected bool) PersonResponse {
	resp := PersonResponse{
		ID:          e.ID.String(),
		Kind:        e.Kind.String(),
		DisplayName: e.DisplayName,
		Source:      e.Source,
		Skeleton:    e.Skeleton,
		Redirected:  redirected,
		Identifiers: make([]IdentifierResponse, 0, len(idents)),
		LastSeenAt:  e.LastSeenAt,
		CreatedAt:   e.CreatedAt,
	}
	for _, ident := range idents {
		resp.Identifiers = append(resp.Identifiers, IdentifierResponse{
			Type:       ident.Type.String(),
			Value:      ident.Normalized,
			Source:     ident.Source,
			Confidence: ident.Confidence,
		})
	}
	return resp
}

// EdgeResponse is the wire shape of one traversed edge.
type EdgeResponse struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Note       string  `json:"note,omitempty"`
}

// ClusterNodeResponse is one entity reached by the cluster traversal.
type ClusterNodeResponse struct {
	ID       string         `json:"id"`
	Distance int            `json:"distance"`
	Path     []EdgeResponse `json:"path,omitempty"`
}

// ClusterResponse is the wire shape of a cluster view.
type ClusterResponse struct {
	Root  string                `json:"root"`
	Nodes []ClusterNodeResponse `json:"nodes"`
}

// FromCluster maps a cluster traversal to the response shape.
func FromCluster(root id.EntityID, nodes []graph.ClusterNode) ClusterResponse {
	resp := ClusterResponse{
		Root:  root.String(),
		Nodes: make([]ClusterNodeResponse, 0, len(nodes)),
	}
	for _, n := range nodes {
		node := ClusterNodeResponse{
			ID:       n.ID.String(),
			Distance: n.Distance,
		}
		for _, e := range n.Path {
			node.Path = append(node.Path, EdgeResponse{
				From:       e.From.String(),
				To:         e.To.String(),
				Type:       string(e.Type),
				Confidence: e.Confidence,
				Note:       e.Note,
			})
		}
		resp.Nodes = append(resp.Nodes, node)
	}
	return resp
}
