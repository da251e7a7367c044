package gns3

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/atvirokodosprendimai/netmodel/pkg/simulate"
	"github.com/atvirokodosprendimai/netmodel/pkg/topology"
)

const (
	ProjectPrefix = "netmodel"
	minRadius     = 150
	nodeSpacing   = 60
)

// ProjectName returns a fresh project name.
func ProjectName() string {
	return ProjectPrefix + strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// Workspace places nodes and links into one GNS3 project.
type Workspace struct {
	client     *Client
	project    Project
	templateID string
}

// OpenWorkspace uses the project with projectID when set, otherwise it
// creates a project called name (or a generated name when name is empty).
func OpenWorkspace(ctx context.Context, c *Client, projectID, name, templateID string) (*Workspace, error) {
	var (
		p   Project
		err error
	)
	if projectID != "" {
		p, err = c.GetProject(ctx, projectID)
	} else {
		if name == "" {
			name = ProjectName()
		}
		p, err = c.CreateProject(ctx, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open project: %w", err)
	}

	log.Info().Str("project", p.Name).Str("id", p.ID).Msg("using gns3 project")
	return &Workspace{client: c, project: p, templateID: templateID}, nil
}

func (w *Workspace) Project() Project {
	return w.project
}

func (w *Workspace) URL() string {
	return w.client.ProjectURL(w.project.ID)
}

// Position spreads total nodes on a circle around the canvas origin.
func Position(index, total int) (x, y int) {
	if total <= 1 {
		return 0, 0
	}
	radius := math.Max(minRadius, float64(total*nodeSpacing)/(2*math.Pi))
	angle := 2 * math.Pi * float64(index) / float64(total)
	return int(math.Round(radius * math.Cos(angle))), int(math.Round(radius * math.Sin(angle)))
}

// CreateNode instantiates the router template and names the node after the
// device. When the rename fails the node still exists, so its ref is
// returned along with the error.
func (w *Workspace) CreateNode(ctx context.Context, name string, index, total int) (simulate.NodeRef, error) {
	x, y := Position(index, total)

	n, err := w.client.AddNodeFromTemplate(ctx, w.project.ID, w.templateID, x, y)
	if err != nil {
		return simulate.NodeRef{}, err
	}

	renamed, err := w.client.RenameNode(ctx, w.project.ID, n.ID, name)
	if err != nil {
		return simulate.NodeRef{ID: n.ID, Dir: n.Directory}, fmt.Errorf("failed to rename node %s: %w", n.ID, err)
	}

	dir := renamed.Directory
	if dir == "" {
		dir = n.Directory
	}
	return simulate.NodeRef{ID: n.ID, Dir: dir}, nil
}

func (w *Workspace) CreateLink(ctx context.Context, desc topology.LinkDescriptor) (string, error) {
	l, err := w.client.CreateLink(ctx, w.project.ID, desc.Members)
	if err != nil {
		return "", err
	}
	log.Debug().Int("link", desc.LinkID).Str("gns3_link", l.ID).Msg("link created")
	return l.ID, nil
}
