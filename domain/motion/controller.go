package motion

import "context"

// Controller is the motion/offset command issuer the toolchanger drives.
// Implementations apply each call as one discrete command.
type Controller interface {
	// Position returns the current logical (gcode) position.
	Position(ctx context.Context) (Position, error)

	// SaveState snapshots the command state under name without moving.
	SaveState(ctx context.Context, name string) error

	// RestoreState restores a state saved under name. With move=false no
	// motion is issued; restored offsets take effect for later moves.
	RestoreState(ctx context.Context, name string, move bool) error

	// SetOffset updates the coordinate offset for the defined axes only.
	SetOffset(ctx context.Context, offset Partial) error

	// MeshActive reports whether a bed compensation mesh is loaded.
	MeshActive(ctx context.Context) bool

	// SetMeshOffset shifts the compensation mesh by x, y.
	SetMeshOffset(ctx context.Context, x, y float64) error

	// Move issues an immediate move on the defined axes.
	Move(ctx context.Context, target Partial) error
}
