package skills

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

var (
	ErrDivisionByZero   = errors.New("division by zero is not allowed")
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Operation is one of the four arithmetic skills.
type Operation int

const (
	OpAdd Operation = iota
	OpSub
	OpMul
	OpDiv
)

type opInfo struct {
	name        string
	description string
	apply       func(a, b float64) (float64, error)
}

var operations = map[Operation]opInfo{
	OpAdd: {
		name:        "add",
		description: "Calculate the addition of two numbers. Use this for sum operations.",
		apply:       func(a, b float64) (float64, error) { return Add(a, b), nil },
	},
	OpSub: {
		name:        "sub",
		description: "Calculate the subtraction of two numbers (a - b). Use this for subtraction operations.",
		apply:       func(a, b float64) (float64, error) { return Sub(a, b), nil },
	},
	OpMul: {
		name:        "mul",
		description: "Calculate the multiplication of two numbers. Use this tool whenever you need to perform mathematical multiplication.",
		apply:       func(a, b float64) (float64, error) { return Mul(a, b), nil },
	},
	OpDiv: {
		name:        "divide",
		description: "Calculate the division of two numbers (a / b). Use this tool whenever you need to perform mathematical division. Dividing by zero is reported as an error.",
		apply:       Divide,
	},
}

func Add(a, b float64) float64 { return a + b }
func Sub(a, b float64) float64 { return a - b }
func Mul(a, b float64) float64 { return a * b }

func Divide(a, b float64) (float64, error) {
	if b == 0 {
		return 0, ErrDivisionByZero
	}
	return a / b, nil
}

// Arithmetic exposes one Operation as a skill taking two numbers a and b.
type Arithmetic struct {
	Op Operation
}

// Calculator returns the add, sub, mul and divide skills.
func Calculator() []Skill {
	return []Skill{Arithmetic{OpAdd}, Arithmetic{OpSub}, Arithmetic{OpMul}, Arithmetic{OpDiv}}
}

func (a Arithmetic) info() opInfo {
	info, ok := operations[a.Op]
	if !ok {
		panic(fmt.Sprintf("skills: unknown arithmetic operation %d", a.Op))
	}
	return info
}

func (a Arithmetic) Name() string        { return a.info().name }
func (a Arithmetic) Description() string { return a.info().description }

func (a Arithmetic) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{
				"type":        "number",
				"description": "The first operand. A plain number, never an expression.",
			},
			"b": map[string]any{
				"type":        "number",
				"description": "The second operand. A plain number, never an expression.",
			},
		},
		"required": []string{"a", "b"},
	}
}

type operands struct {
	A float64 `mapstructure:"a"`
	B float64 `mapstructure:"b"`
}

func (a Arithmetic) Execute(_ context.Context, args map[string]any) (string, error) {
	var in operands
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnset:       true,
		Result:           &in,
	})
	if err != nil {
		return "", err
	}
	if err := dec.Decode(args); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	v, err := a.info().apply(in.A, in.B)
	if err != nil {
		return "", err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("result of %s(%v, %v) is not a finite number", a.Name(), in.A, in.B)
	}
	return FormatNumber(v), nil
}

// FormatNumber renders v in the shortest form that parses back to v.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
