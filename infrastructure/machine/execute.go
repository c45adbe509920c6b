package machine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/toolchanger/domain/motion"
)

// Execute runs one raw command line. G0/G1 move the named axes and G28
// homes them after notifying the homing listeners. The state and peripheral
// commands the machine itself logs are interpreted too, so a hook can drive
// them by hand. Anything else is only logged.
func (m *Machine) Execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	cmd := strings.ToUpper(fields[0])
	args := parseKeyValues(fields[1:])
	switch cmd {
	case "G0", "G1":
		target, err := parseAxisWords(fields[1:], false)
		if err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
		return m.Move(ctx, target)
	case "G28":
		target, err := parseAxisWords(fields[1:], true)
		if err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
		return m.home(ctx, target)
	case "SET_GCODE_OFFSET":
		offset, err := args.axes()
		if err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
		return m.SetOffset(ctx, offset)
	case "SAVE_GCODE_STATE":
		return m.SaveState(ctx, args.get("NAME", "default"))
	case "RESTORE_GCODE_STATE":
		move, err := strconv.Atoi(args.get("MOVE", "0"))
		if err != nil {
			return fmt.Errorf("%s: invalid MOVE %q", cmd, args["MOVE"])
		}
		return m.RestoreState(ctx, args.get("NAME", "default"), move != 0)
	case "ACTIVATE_EXTRUDER":
		return m.ActivateExtruder(ctx, args["EXTRUDER"])
	case "SYNC_EXTRUDER_MOTION":
		if _, ok := args["MOTION_QUEUE"]; !ok {
			return fmt.Errorf("%s: MOTION_QUEUE is required", cmd)
		}
		return m.SyncExtruderMotion(ctx, args["EXTRUDER"], args["MOTION_QUEUE"])
	case "ACTIVATE_FAN":
		return m.ActivateFan(ctx, args["FAN"])
	default:
		m.mu.Lock()
		m.record("%s", line)
		m.mu.Unlock()
		return nil
	}
}

// home moves the selected axes (all when none are named) to the physical
// origin.
func (m *Machine) home(ctx context.Context, axes motion.Partial) error {
	m.mu.Lock()
	listeners := append([]HomingListener(nil), m.homing...)
	m.mu.Unlock()

	for _, fn := range listeners {
		if err := fn(ctx); err != nil {
			return fmt.Errorf("homing: %w", err)
		}
	}

	if axes.IsEmpty() {
		axes = motion.Zero()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range motion.AllAxes() {
		if axes.Has(a) {
			m.physical[a] = 0
		}
	}
	m.record("G28 %s", strings.Join(axisLetters(axes), " "))
	return nil
}

// parseAxisWords reads X/Y/Z words. Other words (F, E) are ignored. With
// bare the axis letters may come without a value.
func parseAxisWords(words []string, bare bool) (motion.Partial, error) {
	var p motion.Partial
	for _, w := range words {
		axes, err := motion.ParseAxes(w[:1])
		if err != nil {
			continue
		}
		if bare && len(w) == 1 {
			p.Set(axes[0], 0)
			continue
		}
		v, err := strconv.ParseFloat(w[1:], 64)
		if err != nil {
			return motion.Partial{}, fmt.Errorf("invalid word %q", w)
		}
		p.Set(axes[0], v)
	}
	return p, nil
}

// keyValues holds the KEY=VALUE words of an extended command, keys upper
// cased.
type keyValues map[string]string

func parseKeyValues(words []string) keyValues {
	kv := make(keyValues, len(words))
	for _, w := range words {
		k, v, ok := strings.Cut(w, "=")
		if !ok {
			continue
		}
		kv[strings.ToUpper(k)] = strings.Trim(v, `"`)
	}
	return kv
}

func (kv keyValues) get(key, def string) string {
	if v, ok := kv[key]; ok && v != "" {
		return v
	}
	return def
}

// axes reads X=, Y= and Z=. Absent axes stay undefined.
func (kv keyValues) axes() (motion.Partial, error) {
	var p motion.Partial
	for _, a := range motion.AllAxes() {
		raw, ok := kv[a.String()]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return motion.Partial{}, fmt.Errorf("invalid %s=%q", a, raw)
		}
		p.Set(a, v)
	}
	return p, nil
}

func axisLetters(p motion.Partial) []string {
	var out []string
	for _, a := range motion.AllAxes() {
		if p.Has(a) {
			out = append(out, a.String())
		}
	}
	return out
}
