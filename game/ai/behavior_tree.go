package ai

// Status is the result of a behavior tree node tick.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusRunning
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Node is a single node in a behavior tree.
//
// Composite nodes keep no memory of a child that returned StatusRunning:
// every tick walks the tree from the root again. Leaves must therefore be
// safe to re-evaluate each tick.
type Node interface {
	Tick(ctx *Context) Status
}

// ---- Composite nodes ----

// Selector succeeds as soon as one child succeeds (logical OR).
// An empty Selector fails.
type Selector struct {
	Children []Node
}

func (s *Selector) Tick(ctx *Context) Status {
	for _, c := range s.Children {
		switch c.Tick(ctx) {
		case StatusSuccess:
			return StatusSuccess
		case StatusRunning:
			return StatusRunning
		}
	}
	return StatusFailure
}

// Sequence succeeds only when all children succeed (logical AND).
// An empty Sequence succeeds.
type Sequence struct {
	Children []Node
}

func (s *Sequence) Tick(ctx *Context) Status {
	for _, c := range s.Children {
		switch c.Tick(ctx) {
		case StatusFailure:
			return StatusFailure
		case StatusRunning:
			return StatusRunning
		}
	}
	return StatusSuccess
}

// ---- Leaf nodes ----

// ConditionNode evaluates a boolean predicate. It must not mutate state.
type ConditionNode struct {
	Fn func(*Context) bool
}

func (cn *ConditionNode) Tick(ctx *Context) Status {
	if cn.Fn != nil && cn.Fn(ctx) {
		return StatusSuccess
	}
	return StatusFailure
}

// ActionNode executes an action and returns its status.
type ActionNode struct {
	Fn func(*Context) Status
}

func (an *ActionNode) Tick(ctx *Context) Status {
	if an.Fn == nil {
		return StatusFailure
	}
	return an.Fn(ctx)
}

// ---- Decorator nodes ----

// Inverter negates the result of its child. Without a child it fails.
type Inverter struct {
	Child Node
}

func (i *Inverter) Tick(ctx *Context) Status {
	if i.Child == nil {
		return StatusFailure
	}
	switch i.Child.Tick(ctx) {
	case StatusSuccess:
		return StatusFailure
	case StatusFailure:
		return StatusSuccess
	default:
		return StatusRunning
	}
}

// Succeeder ticks its child for the side effects and always reports success.
type Succeeder struct {
	Child Node
}

func (s *Succeeder) Tick(ctx *Context) Status {
	if s.Child != nil {
		s.Child.Tick(ctx)
	}
	return StatusSuccess
}

// Failer ticks its child for the side effects and always reports failure.
type Failer struct {
	Child Node
}

func (f *Failer) Tick(ctx *Context) Status {
	if f.Child != nil {
		f.Child.Tick(ctx)
	}
	return StatusFailure
}

// ---- Builders ----

func NewSelector(children ...Node) *Selector { return &Selector{Children: children} }

func NewSequence(children ...Node) *Sequence { return &Sequence{Children: children} }

// If wraps a predicate as a ConditionNode.
func If(fn func(*Context) bool) *ConditionNode { return &ConditionNode{Fn: fn} }

// Do wraps a function as an ActionNode.
func Do(fn func(*Context) Status) *ActionNode { return &ActionNode{Fn: fn} }

// Not wraps a node in an Inverter.
func Not(n Node) *Inverter { return &Inverter{Child: n} }

// ---- BehaviorTree root ----

// BehaviorTree wraps the root node.
type BehaviorTree struct {
	Root Node
}

// Tick runs one frame of the behavior tree. A tree without a root fails.
func (bt *BehaviorTree) Tick(ctx *Context) Status {
	if bt == nil || bt.Root == nil {
		return StatusFailure
	}
	return bt.Root.Tick(ctx)
}
