package xinstr

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name       string
		addr       uint32
		data       []byte
		wantSize   int
		wantKind   Kind
		wantTarget uint32
	}{
		{
			name:       "call rel32",
			addr:       0x1000,
			data:       []byte{0xe8, 0x05, 0x00, 0x00, 0x00},
			wantSize:   5,
			wantKind:   Call,
			wantTarget: 0x100A,
		},
		{
			name:       "jmp rel8 self-loop",
			addr:       0x1000,
			data:       []byte{0xeb, 0xfe},
			wantSize:   2,
			wantKind:   Jump,
			wantTarget: 0x1000,
		},
		{
			name:       "operand-size-prefixed jcc rel32",
			addr:       0x2000,
			data:       []byte{0x66, 0x0f, 0x84, 0x10, 0x00, 0x00, 0x00},
			wantSize:   7,
			wantKind:   CondJump,
			wantTarget: 0x2017,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			inst, err := Classify(c.addr, c.data)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if inst.Size != c.wantSize {
				t.Errorf("size = %d, want %d", inst.Size, c.wantSize)
			}
			if inst.Kind != c.wantKind {
				t.Errorf("kind = %v, want %v", inst.Kind, c.wantKind)
			}
			if inst.Target != c.wantTarget {
				t.Errorf("target = 0x%x, want 0x%x", inst.Target, c.wantTarget)
			}
		})
	}
}

func TestClassifyIndirectFF(t *testing.T) {
	// FF /2 = CALL r/m32 indirect: ModR/M byte 0x10 -> reg field 2.
	data := []byte{0xff, 0x10}
	inst, err := Classify(0x3000, data)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if inst.Kind != Call {
		t.Errorf("kind = %v, want CALL", inst.Kind)
	}
	if inst.Target != 0 {
		t.Errorf("target = 0x%x, want 0 (indirect has no static target)", inst.Target)
	}
}

func TestUnacceptableText(t *testing.T) {
	for _, text := range []string{"(bad)", "ss", "gs"} {
		inst := Instruction{Text: text}
		if IsAcceptable(inst) {
			t.Errorf("IsAcceptable(%q) = true, want false", text)
		}
	}
	if !IsAcceptable(Instruction{Text: "mov eax, ebx"}) {
		t.Error("IsAcceptable(normal text) = false, want true")
	}
}
