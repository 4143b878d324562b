package board

import (
	"fmt"

	"github.com/google/uuid"
)

// StateKey identifies one of the eight fixed workflow states.
// The key is the stable identifier persisted in Redis; the operator-facing
// label lives in States.
type StateKey string

const (
	// StateSinSolicitud is the initial state: no CIP has been requested.
	StateSinSolicitud StateKey = "sin_solicitud"

	// StateCIPSolicitado means operations requested a CIP run.
	StateCIPSolicitado StateKey = "cip_solicitado"

	// StateCIPEnCurso means elaboration is running the CIP.
	StateCIPEnCurso StateKey = "cip_en_curso"

	// StateHisopadoPend means the CIP finished and a swab test is pending.
	StateHisopadoPend StateKey = "hisopado_pend"

	// StateHisopadoEnCurso means raw materials/QA is running the swab test.
	StateHisopadoEnCurso StateKey = "hisopado_en_curso"

	// StateHisopadoOK means the swab passed and the line is cleared to start.
	StateHisopadoOK StateKey = "hisopado_ok"

	// StateArranqueEnCurso means the line start-up is in progress.
	StateArranqueEnCurso StateKey = "arranque_en_curso"

	// StateProduccionOK is the terminal state: production confirmed.
	// Reaching it closes the current cycle's summary.
	StateProduccionOK StateKey = "produccion_ok"
)

// StateInitial is the state every cycle starts from and resets back to.
const StateInitial = StateSinSolicitud

// StateTerminal is the cycle-closing state.
const StateTerminal = StateProduccionOK

// StateInfo pairs a state key with its operator-facing label.
type StateInfo struct {
	Key   StateKey
	Label string
}

// States lists all workflow states in stepper display order.
// The index defines progress display order, not reachability order.
var States = []StateInfo{
	{StateSinSolicitud, "Sin solicitud de CIP"},
	{StateCIPSolicitado, "CIP solicitado por Operación"},
	{StateCIPEnCurso, "CIP en curso (Elaboración)"},
	{StateHisopadoPend, "CIP finalizado: hisopado pendiente"},
	{StateHisopadoEnCurso, "Hisopado en curso (Materias)"},
	{StateHisopadoOK, "Hisopado OK (Listo para arranque)"},
	{StateArranqueEnCurso, "Arranque en curso"},
	{StateProduccionOK, "Producción OK"},
}

// Role identifies which plant sector an operator acts for.
type Role string

const (
	// RoleOperacion is the operations sector (requests CIP, runs start-up,
	// confirms production, and is the only role allowed to abort a cycle).
	RoleOperacion Role = "operacion"

	// RoleElaboracion is the production/elaboration sector (runs the CIP).
	RoleElaboracion Role = "elaboracion"

	// RoleMaterias is the raw materials/QA sector (runs the swab test).
	RoleMaterias Role = "materias"
)

// Roles lists all valid roles.
var Roles = []Role{RoleOperacion, RoleElaboracion, RoleMaterias}

// Transition is one allowed action for a (role, from-state) combination.
type Transition struct {
	To     StateKey `json:"to"`
	Action string   `json:"action"`
}

// Transitions is the fixed role-scoped transition table. It is the single
// authority on which role may advance the board from which state, evaluated
// both before attempting a mutation (fast local check) and inside the
// store transaction against the freshest state.
var Transitions = map[Role]map[StateKey][]Transition{
	RoleOperacion: {
		StateSinSolicitud: {{To: StateCIPSolicitado, Action: "Solicitar CIP"}},
		StateHisopadoOK:   {{To: StateArranqueEnCurso, Action: "Iniciar arranque"}},
		StateArranqueEnCurso: {
			{To: StateProduccionOK, Action: "Confirmar producción OK"},
			{To: StateSinSolicitud, Action: "Cancelar y reiniciar"},
		},
		StateProduccionOK: {{To: StateSinSolicitud, Action: "Nuevo cambio de sabor"}},
	},
	RoleElaboracion: {
		StateCIPSolicitado: {{To: StateCIPEnCurso, Action: "Iniciar CIP"}},
		StateCIPEnCurso:    {{To: StateHisopadoPend, Action: "Finalizar CIP (pedir hisopado)"}},
	},
	RoleMaterias: {
		StateHisopadoPend: {{To: StateHisopadoEnCurso, Action: "Iniciar hisopado"}},
		StateHisopadoEnCurso: {
			{To: StateHisopadoOK, Action: "Aprobar (OK)"},
			{To: StateCIPSolicitado, Action: "Re-CIP"},
		},
	},
}

func init() {
	// The table is compiled in; a malformed entry is a programming error.
	if err := validateTransitions(); err != nil {
		panic(fmt.Sprintf("board: invalid transition table: %v", err))
	}
}

// validateTransitions checks the compiled-in table exhaustively against the
// role and state enums.
func validateTransitions() error {
	for role, byState := range Transitions {
		if err := role.Validate(); err != nil {
			return err
		}
		for from, opts := range byState {
			if err := from.Validate(); err != nil {
				return fmt.Errorf("role %s: %w", role, err)
			}
			if len(opts) == 0 {
				return fmt.Errorf("role %s, state %s: empty transition list", role, from)
			}
			for _, t := range opts {
				if err := t.To.Validate(); err != nil {
					return fmt.Errorf("role %s, state %s: %w", role, from, err)
				}
				if t.Action == "" {
					return fmt.Errorf("role %s, state %s -> %s: empty action label", role, from, t.To)
				}
			}
		}
	}
	return nil
}

// CanTransition reports whether the transition table allows role to move the
// board from one state to another.
func CanTransition(role Role, from, to StateKey) bool {
	for _, t := range ActionsFor(role, from) {
		if t.To == to {
			return true
		}
	}
	return false
}

// ActionsFor returns the transitions available to role from the given state.
// Returns an empty slice when the role has no actions there.
func ActionsFor(role Role, from StateKey) []Transition {
	byState, ok := Transitions[role]
	if !ok {
		return nil
	}
	return byState[from]
}

// ActionFor returns the action label for a specific (role, from, to)
// transition, or false if the table does not allow it.
func ActionFor(role Role, from, to StateKey) (string, bool) {
	for _, t := range ActionsFor(role, from) {
		if t.To == to {
			return t.Action, true
		}
	}
	return "", false
}

// StateIndex returns the stepper position of a state key, or -1 if unknown.
func StateIndex(key StateKey) int {
	for i, s := range States {
		if s.Key == key {
			return i
		}
	}
	return -1
}

// StateLabel returns the operator-facing label for a state key.
// Unknown keys are returned verbatim so that stale data still renders.
func StateLabel(key StateKey) string {
	for _, s := range States {
		if s.Key == key {
			return s.Label
		}
	}
	return string(key)
}

// RoleLabel returns the operator-facing label for a role.
func RoleLabel(r Role) string {
	switch r {
	case RoleOperacion:
		return "Operación"
	case RoleElaboracion:
		return "Elaboración"
	case RoleMaterias:
		return "Materias Primas"
	default:
		return string(r)
	}
}

// Validate checks if the StateKey is a valid enum value.
func (s StateKey) Validate() error {
	if StateIndex(s) == -1 {
		return fmt.Errorf("unknown state: %q", s)
	}
	return nil
}

// Validate checks if the Role is a valid enum value.
func (r Role) Validate() error {
	switch r {
	case RoleOperacion, RoleElaboracion, RoleMaterias:
		return nil
	default:
		return fmt.Errorf("unknown role: %q", r)
	}
}

// Board is the singleton shared workflow instance. It is owned by the
// workflow engine and mutated only inside store transactions.
type Board struct {
	Current     StateKey `json:"current"`       // Current workflow state
	Cycle       int      `json:"cycle"`         // Monotonically non-decreasing cycle counter (starts at 1)
	UpdatedAtMs int64    `json:"updated_at_ms"` // Unix timestamp in milliseconds of the last mutation
}

// Validate checks if the Board has valid field values.
func (b *Board) Validate() error {
	if err := b.Current.Validate(); err != nil {
		return fmt.Errorf("invalid current state: %w", err)
	}
	if b.Cycle < 1 {
		return fmt.Errorf("invalid cycle: must be >= 1, got %d", b.Cycle)
	}
	return nil
}

// AuditEntry records one committed transition. Entries are immutable once
// written and are only removed by the explicit bulk-clear operations.
type AuditEntry struct {
	ID     string   `json:"id"`             // UUID - unique identifier for this entry
	TsMs   int64    `json:"ts_ms"`          // Unix timestamp in milliseconds, assigned at write time
	UID    string   `json:"uid"`            // Session/user identifier of the actor ("anon" when unknown)
	Role   Role     `json:"role"`           // Sector that performed the transition
	From   StateKey `json:"from"`           // State before the transition
	To     StateKey `json:"to"`             // State after the transition
	Action string   `json:"action"`         // Human description of the action taken
	Note   string   `json:"note,omitempty"` // Optional free-text note
	Cycle  int      `json:"cycle"`          // Cycle this entry belongs to
}

// Validate checks if the AuditEntry has valid field values.
func (e *AuditEntry) Validate() error {
	if _, err := uuid.Parse(e.ID); err != nil {
		return fmt.Errorf("invalid entry ID: not a valid UUID")
	}
	if err := e.Role.Validate(); err != nil {
		return fmt.Errorf("invalid role: %w", err)
	}
	if err := e.From.Validate(); err != nil {
		return fmt.Errorf("invalid from state: %w", err)
	}
	if err := e.To.Validate(); err != nil {
		return fmt.Errorf("invalid to state: %w", err)
	}
	if e.Action == "" {
		return fmt.Errorf("action cannot be empty")
	}
	if e.Cycle < 1 {
		return fmt.Errorf("invalid cycle: must be >= 1, got %d", e.Cycle)
	}
	return nil
}

// PairTotal is the aggregate duration of one timeline pair across a cycle.
type PairTotal struct {
	Key   string  `json:"key"`   // "from->to" pair key
	Label string  `json:"label"` // Pair label (e.g. "Duración CIP")
	Ms    int64   `json:"ms"`    // Accumulated duration in milliseconds
	Min   float64 `json:"min"`   // Accumulated duration in minutes, two decimals
}

// Segment is one closed open/close interval of a timeline pair. A pair that
// was reworked within a cycle produces several segments under the same label.
type Segment struct {
	Key      string  `json:"key"`       // "from->to" pair key
	Label    string  `json:"label"`     // Pair label
	StartMin float64 `json:"start_min"` // Minutes since the cycle zero-point
	EndMin   float64 `json:"end_min"`   // Minutes since the cycle zero-point
	Color    string  `json:"color"`     // Render color hint (hex)
}

// CycleSummary is the derived per-cycle duration breakdown, recomputed
// wholesale each time a cycle closes. It is a cache of a deterministic
// function over the cycle's audit entries and is never hand-edited.
type CycleSummary struct {
	Cycle        int         `json:"cycle"`
	Pairs        []PairTotal `json:"pairs"`
	Segments     []Segment   `json:"segments"`
	StartedAtMs  int64       `json:"started_at_ms"`  // First entry timestamp in the cycle
	FinishedAtMs int64       `json:"finished_at_ms"` // Last entry timestamp in the cycle
	TotalMin     float64     `json:"total_min"`      // Sum of pair minutes, two decimals
	Aborted      bool        `json:"aborted,omitempty"`
	AbortReason  string      `json:"abort_reason,omitempty"`
	CreatedAtMs  int64       `json:"created_at_ms"` // When the summary was computed
}

// Validate checks if the CycleSummary has valid field values.
func (s *CycleSummary) Validate() error {
	if s.Cycle < 1 {
		return fmt.Errorf("invalid cycle: must be >= 1, got %d", s.Cycle)
	}
	return nil
}
