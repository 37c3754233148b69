package registry

// FuncDoc documents a function.
type FuncDoc struct {
	Comment     string
	Description string
	Args        []ArgDoc
}

type ArgDoc struct {
	Name    string
	Comment string
}

// Documented is implemented by functions (or declared values) that carry documentation.
type Documented interface {
	Doc() FuncDoc
}

type documented struct {
	Function
	doc FuncDoc
}

func (d *documented) Doc() FuncDoc { return d.doc }

// WithDoc attaches documentation to a function.
func WithDoc(fn Function, doc FuncDoc) Function {
	return &documented{Function: fn, doc: doc}
}

// DocOf returns the documentation of a function, if it has any.
func DocOf(fn Function) (FuncDoc, bool) {
	if d, ok := fn.(Documented); ok {
		return d.Doc(), true
	}
	return FuncDoc{}, false
}
