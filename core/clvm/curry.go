package clvm

// Operator atoms used by the currying convention.
const (
	opQuote byte = 1
	opApply byte = 2
	opCons  byte = 4
)

var (
	quoteAtom = Atom([]byte{opQuote})
	applyAtom = Atom([]byte{opApply})
	consAtom  = Atom([]byte{opCons})
	envAtom   = Atom([]byte{1})

	quoteHash = HashAtom([]byte{opQuote})
	applyHash = HashAtom([]byte{opApply})
	consHash  = HashAtom([]byte{opCons})
	nilHash   = HashAtom(nil)
)

// Quote returns (q . p).
func Quote(p *Program) *Program { return Cons(quoteAtom, p) }

// Curry binds args to mod: (a (q . mod) (c (q . arg1) (c (q . arg2) ... 1))).
func Curry(mod *Program, args ...*Program) *Program {
	env := envAtom
	for i := len(args) - 1; i >= 0; i-- {
		env = List(consAtom, Quote(args[i]), env)
	}
	return List(applyAtom, Quote(mod), env)
}

// Uncurry reverses Curry. ok is false when p is not in curried form.
func Uncurry(p *Program) (mod *Program, args []*Program, ok bool) {
	parts, err := p.ToList()
	if err != nil || len(parts) != 3 || !isOp(parts[0], opApply) {
		return nil, nil, false
	}
	q := parts[1]
	if !q.pair || !isOp(q.first, opQuote) {
		return nil, nil, false
	}
	mod = q.rest
	env := parts[2]
	for {
		if isOp(env, 1) {
			return mod, args, true
		}
		step, err := env.ToList()
		if err != nil || len(step) != 3 || !isOp(step[0], opCons) {
			return nil, nil, false
		}
		qa := step[1]
		if !qa.pair || !isOp(qa.first, opQuote) {
			return nil, nil, false
		}
		args = append(args, qa.rest)
		env = step[2]
	}
}

func isOp(p *Program, op byte) bool {
	return !p.pair && len(p.atom) == 1 && p.atom[0] == op
}

// CurryTreeHash computes the tree hash of Curry(mod, args...) from the hashes
// alone, so puzzle hashes can be derived without the module's source.
func CurryTreeHash(modHash [32]byte, argHashes ...[32]byte) [32]byte {
	env := HashAtom([]byte{1})
	for i := len(argHashes) - 1; i >= 0; i-- {
		quoted := HashPair(quoteHash, argHashes[i])
		env = HashPair(consHash, HashPair(quoted, HashPair(env, nilHash)))
	}
	quotedMod := HashPair(quoteHash, modHash)
	return HashPair(applyHash, HashPair(quotedMod, HashPair(env, nilHash)))
}
