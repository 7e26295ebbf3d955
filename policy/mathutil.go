package policy

import "golang.org/x/exp/constraints"

func ceilDiv[T constraints.Integer](a, b T) T {
	return (a + b - 1) / b
}

func roundUp[T constraints.Integer](a, multiple T) T {
	return ceilDiv(a, multiple) * multiple
}

func product(values []int) int {
	p := 1
	for _, v := range values {
		p *= v
	}
	return p
}

func ceilPow2(x int) int {
	p := 1
	for p < x {
		p *= 2
	}
	return p
}

// regWords converts an element size in bytes to 32-bit register words.
func regWords(bytes int) int {
	return max(1, bytes/4)
}
