package sgob

import (
	"bytes"
	"encoding/gob"
	"errors"
	"math/rand"
	"reflect"
	"testing"
)

type pair struct {
	Key   string
	Value map[string]any
}

func init() {
	gob.Register([]any{})
}

func TestSlice(t *testing.T) {
	tests := []struct {
		name  string
		value []pair
	}{
		{"empty", nil},
		{"single", []pair{{Key: "PRT.GEN.0000001", Value: map[string]any{"name": "thrL", "start": 190}}}},
		{"many", []pair{
			{Key: "PRT.GEN.0000001", Value: map[string]any{"name": "thrL"}},
			{Key: "PRT.GEN.0000002", Value: map[string]any{"synonyms": []any{"thrA1", "thrA2"}}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buffer bytes.Buffer
			if err := EncodeSlice(gob.NewEncoder(&buffer), tt.value); err != nil {
				t.Fatal(err)
			}
			got, err := DecodeSlice[pair](gob.NewDecoder(&buffer))
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.value) {
				t.Errorf("DecodeSlice() = %v, want = %v", got, tt.value)
			}
		})
	}
}

func TestSequences(t *testing.T) {
	const N = 100_000
	source := rand.New(rand.NewSource(N))

	ints := make([]int, N)
	for i := range ints {
		ints[i] = source.Int()
	}
	words := []string{"organism", "gene"}

	var buffer bytes.Buffer
	encoder := gob.NewEncoder(&buffer)
	if err := EncodeSlice(encoder, ints); err != nil {
		t.Fatal(err)
	}
	if err := EncodeSlice(encoder, words); err != nil {
		t.Fatal(err)
	}

	decoder := gob.NewDecoder(&buffer)
	gotInts, err := DecodeSlice[int](decoder)
	if err != nil {
		t.Fatal(err)
	}
	gotWords, err := DecodeSlice[string](decoder)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(gotInts, ints) || !reflect.DeepEqual(gotWords, words) {
		t.Error("DecodeSlice() did not round trip consecutive sequences")
	}
}

func TestEncode_countMismatch(t *testing.T) {
	encoder := gob.NewEncoder(new(bytes.Buffer))

	short := Encode(encoder, 2, func(yield func(int) error) error {
		return yield(1)
	})
	if !errors.Is(short, ErrCountMismatch) {
		t.Errorf("Encode() error = %v, want = %v", short, ErrCountMismatch)
	}

	long := Encode(encoder, 1, func(yield func(int) error) error {
		if err := yield(1); err != nil {
			return err
		}
		return yield(2)
	})
	if !errors.Is(long, ErrCountMismatch) {
		t.Errorf("Encode() error = %v, want = %v", long, ErrCountMismatch)
	}
}

func TestDecode_stops(t *testing.T) {
	var buffer bytes.Buffer
	if err := EncodeSlice(gob.NewEncoder(&buffer), []int{1, 2, 3}); err != nil {
		t.Fatal(err)
	}

	stop := errors.New("stop")
	var seen []int
	err := Decode(gob.NewDecoder(&buffer), func(i int) error {
		seen = append(seen, i)
		if i == 2 {
			return stop
		}
		return nil
	})
	if err != stop || !reflect.DeepEqual(seen, []int{1, 2}) {
		t.Errorf("Decode() = %v, seen %v", err, seen)
	}
}
