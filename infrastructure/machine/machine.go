// Package machine provides a simulated machine backend: a motion controller,
// a toolhead and a peripheral lookup that keep their state in memory and log
// every command they are asked to issue.
package machine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/felixgeelhaar/toolchanger/domain/motion"
	"github.com/felixgeelhaar/toolchanger/domain/tool"
	"github.com/felixgeelhaar/toolchanger/infrastructure/logging"
)

var (
	// ErrUnknownPeripheral indicates a command named a peripheral that is not configured.
	ErrUnknownPeripheral = errors.New("unknown peripheral")

	// ErrUnknownState indicates a restore of a state that was never saved.
	ErrUnknownState = errors.New("unknown saved state")
)

// Kind classifies peripherals.
type Kind string

// Peripheral kinds.
const (
	KindExtruder Kind = "extruder"
	KindStepper  Kind = "extruder_stepper"
	KindFan      Kind = "fan"
)

// Peripheral is a named simulated peripheral.
type Peripheral struct {
	name string
	kind Kind
}

// Name returns the peripheral name.
func (p Peripheral) Name() string { return p.name }

// Kind returns the peripheral kind.
func (p Peripheral) Kind() Kind { return p.kind }

// Config lists the simulated peripherals.
type Config struct {
	Extruders  []string
	Steppers   []string
	Fans       []string
	MeshActive bool
}

// HomingListener is called when homing starts.
type HomingListener func(ctx context.Context) error

type savedState struct {
	offset [3]float64
}

// Machine is the simulated backend. Logical positions are physical positions
// minus the coordinate offset.
type Machine struct {
	mu sync.Mutex

	peripherals map[string]Peripheral
	physical    motion.Position
	offset      [3]float64
	saved       map[string]savedState
	mesh        bool
	meshOffset  [2]float64

	extruder string
	fan      string
	queues   map[string]string

	homing []HomingListener
	log    []string
}

// New creates a machine. The first extruder is active and every extruder
// follows its own motion queue.
func New(cfg Config) *Machine {
	m := &Machine{
		peripherals: make(map[string]Peripheral),
		saved:       make(map[string]savedState),
		queues:      make(map[string]string),
		mesh:        cfg.MeshActive,
	}
	for _, name := range cfg.Extruders {
		m.peripherals[name] = Peripheral{name: name, kind: KindExtruder}
		m.queues[name] = name
	}
	for _, name := range cfg.Steppers {
		m.peripherals[name] = Peripheral{name: name, kind: KindStepper}
	}
	for _, name := range cfg.Fans {
		m.peripherals[name] = Peripheral{name: name, kind: KindFan}
	}
	if len(cfg.Extruders) > 0 {
		m.extruder = cfg.Extruders[0]
	}
	return m
}

// OnHomingStarted registers fn to run before every homing move.
func (m *Machine) OnHomingStarted(fn HomingListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.homing = append(m.homing, fn)
}

// Lookup resolves a configured peripheral.
func (m *Machine) Lookup(name string) (tool.Peripheral, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peripherals[name]
	if !ok {
		return nil, false
	}
	return p, true
}

// Position returns the logical position.
func (m *Machine) Position(context.Context) (motion.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logical(), nil
}

func (m *Machine) logical() motion.Position {
	var pos motion.Position
	for i := range pos {
		pos[i] = m.physical[i] - m.offset[i]
	}
	return pos
}

// SaveState snapshots the coordinate offset under name.
func (m *Machine) SaveState(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[name] = savedState{offset: m.offset}
	m.record("SAVE_GCODE_STATE NAME=%s", name)
	return nil
}

// RestoreState restores the offset saved under name. With move the machine
// also moves so the logical position is kept.
func (m *Machine) RestoreState(_ context.Context, name string, move bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.saved[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownState, name)
	}
	logical := m.logical()
	m.offset = st.offset
	if move {
		for i := range m.physical {
			m.physical[i] = logical[i] + m.offset[i]
		}
	}
	m.record("RESTORE_GCODE_STATE NAME=%s MOVE=%d", name, boolInt(move))
	return nil
}

// SetOffset updates the offset of the defined axes.
func (m *Machine) SetOffset(_ context.Context, offset motion.Partial) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range motion.AllAxes() {
		if v := offset.Get(a); v != nil {
			m.offset[a] = *v
		}
	}
	m.record("SET_GCODE_OFFSET %s", offset)
	return nil
}

// MeshActive reports whether a mesh is loaded.
func (m *Machine) MeshActive(context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mesh
}

// SetMeshOffset shifts the mesh.
func (m *Machine) SetMeshOffset(_ context.Context, x, y float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meshOffset = [2]float64{x, y}
	m.record("BED_MESH_OFFSET X=%f Y=%f", x, y)
	return nil
}

// Move moves the defined axes to the logical target.
func (m *Machine) Move(_ context.Context, target motion.Partial) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.move(target)
	m.record("G0 %s", gcodeWords(target))
	return nil
}

func (m *Machine) move(target motion.Partial) {
	for _, a := range motion.AllAxes() {
		if v := target.Get(a); v != nil {
			m.physical[a] = *v + m.offset[a]
		}
	}
}

// ActiveExtruder returns the active extruder.
func (m *Machine) ActiveExtruder() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extruder
}

// ActivateExtruder switches the active extruder.
func (m *Machine) ActivateExtruder(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require(name, KindExtruder); err != nil {
		return err
	}
	m.extruder = name
	m.record("ACTIVATE_EXTRUDER EXTRUDER=%s", name)
	return nil
}

// StepperQueue returns the queue stepper follows, or "".
func (m *Machine) StepperQueue(stepper string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queues[stepper]
}

// SyncExtruderMotion makes stepper follow queue; "" detaches it.
func (m *Machine) SyncExtruderMotion(_ context.Context, stepper, queue string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.peripherals[stepper]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeripheral, stepper)
	}
	if queue != "" {
		if err := m.require(queue, KindExtruder); err != nil {
			return err
		}
	}
	m.queues[stepper] = queue
	m.record("SYNC_EXTRUDER_MOTION EXTRUDER=%s MOTION_QUEUE=%s", stepper, queue)
	return nil
}

// ActiveFan returns the active part cooling fan.
func (m *Machine) ActiveFan() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fan
}

// ActivateFan switches the active part cooling fan.
func (m *Machine) ActivateFan(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require(name, KindFan); err != nil {
		return err
	}
	m.fan = name
	m.record("ACTIVATE_FAN FAN=%s", name)
	return nil
}

func (m *Machine) require(name string, kind Kind) error {
	p, ok := m.peripherals[name]
	if !ok || p.kind != kind {
		return fmt.Errorf("%w: %s %s", ErrUnknownPeripheral, kind, name)
	}
	return nil
}

// Log returns the issued commands.
func (m *Machine) Log() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.log)
}

// ResetLog clears the command log.
func (m *Machine) ResetLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = nil
}

// Snapshot is the simulated machine state.
type Snapshot struct {
	Position       motion.Position   `json:"position"`
	Offset         [3]float64        `json:"offset"`
	MeshOffset     [2]float64        `json:"mesh_offset"`
	ActiveExtruder string            `json:"active_extruder"`
	ActiveFan      string            `json:"active_fan"`
	Queues         map[string]string `json:"motion_queues"`
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	queues := make(map[string]string, len(m.queues))
	for k, v := range m.queues {
		queues[k] = v
	}
	return Snapshot{
		Position:       m.logical(),
		Offset:         m.offset,
		MeshOffset:     m.meshOffset,
		ActiveExtruder: m.extruder,
		ActiveFan:      m.fan,
		Queues:         queues,
	}
}

// record appends a command to the log. Callers hold mu.
func (m *Machine) record(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	m.log = append(m.log, line)
	logging.Debug().
		Add(logging.Component("machine")).
		Add(logging.Str("command", line)).
		Msg("command issued")
}

func gcodeWords(p motion.Partial) string {
	var words []string
	for _, a := range motion.AllAxes() {
		if v := p.Get(a); v != nil {
			words = append(words, fmt.Sprintf("%s%.3f", a, *v))
		}
	}
	return strings.Join(words, " ")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var (
	_ motion.Controller = (*Machine)(nil)
	_ tool.Toolhead     = (*Machine)(nil)
	_ tool.Lookup       = (*Machine)(nil)
)
