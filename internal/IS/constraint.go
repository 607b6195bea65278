package IS

import (
	"fmt"

	"github.com/sqlvibe/svcomp/internal/QP"
	"github.com/sqlvibe/svcomp/internal/SF/util"
)

// SpaceRef names a space either by a known id or by the register that
// will hold the id once the program assigns it.
type SpaceRef struct {
	id      uint32
	reg     int
	pending bool
}

func Known(id uint32) SpaceRef {
	return SpaceRef{id: id}
}

func PendingAt(reg int) SpaceRef {
	return SpaceRef{reg: reg, pending: true}
}

func (r SpaceRef) IsPending() bool { return r.pending }

// ID returns the space id; it must not be called on a pending reference.
func (r SpaceRef) ID() uint32 {
	util.Assert(!r.pending, "space id requested from pending reference %s", r)
	return r.id
}

// Reg returns the register of a pending reference.
func (r SpaceRef) Reg() int { return r.reg }

func (r SpaceRef) String() string {
	if r.pending {
		return fmt.Sprintf("r[%d]", r.reg)
	}
	return fmt.Sprintf("%d", r.id)
}

const CheckLanguageSQL = "SQL"

type CheckDef struct {
	SpaceID  SpaceRef
	Name     string
	Language string
	Code     string
	Enabled  bool
	// Expr is Code parsed; set when the constraint enters the schema.
	Expr QP.Expr
}

type FKLink struct {
	ChildField  uint32
	ParentField uint32
}

type FKDef struct {
	Name     string
	ChildID  SpaceRef
	ParentID SpaceRef
	Links    []FKLink
	Match    QP.FKMatch
	OnDelete QP.FKAction
	OnUpdate QP.FKAction
	Deferred bool
	SelfRef  bool
}

// ChildFields returns the child side of the links.
func (fk *FKDef) ChildFields() []uint32 {
	out := make([]uint32, len(fk.Links))
	for i, l := range fk.Links {
		out[i] = l.ChildField
	}
	return out
}

// ParentFields returns the parent side of the links.
func (fk *FKDef) ParentFields() []uint32 {
	out := make([]uint32, len(fk.Links))
	for i, l := range fk.Links {
		out[i] = l.ParentField
	}
	return out
}

type SequenceDef struct {
	ID    uint32
	Owner uint32
	Name  string
	Step  int64
	Min   int64
	Max   int64
	Start int64
	Cache int64
	Cycle bool
}

// NewSequence returns the definition an AUTOINCREMENT column gets.
func NewSequence(name string) *SequenceDef {
	return &SequenceDef{
		Name:  name,
		Step:  1,
		Min:   1,
		Max:   1<<63 - 1,
		Start: 1,
	}
}

type TriggerEvent string

const (
	TriggerInsert TriggerEvent = "INSERT"
	TriggerDelete TriggerEvent = "DELETE"
	TriggerUpdate TriggerEvent = "UPDATE"
)

type TriggerTiming string

const (
	TriggerBefore    TriggerTiming = "BEFORE"
	TriggerAfter     TriggerTiming = "AFTER"
	TriggerInsteadOf TriggerTiming = "INSTEAD OF"
)

// TriggerDef is the catalog side of a row trigger; trigger bodies are
// executed by the host through a VM hook.
type TriggerDef struct {
	Name    string
	SpaceID uint32
	Event   TriggerEvent
	Timing  TriggerTiming
}
