package gst

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	t.Run("1000 rupee topup", func(t *testing.T) {
		b := Calculate(100000)
		assert.Equal(t, int64(84746), b.Net)
		assert.Equal(t, int64(15254), b.Tax)
		assert.Equal(t, int64(7627), b.CGST)
		assert.Equal(t, int64(7627), b.SGST)
	})

	t.Run("odd tax splits to sgst", func(t *testing.T) {
		b := Calculate(101)
		assert.Equal(t, b.Tax, b.CGST+b.SGST)
		assert.LessOrEqual(t, b.CGST, b.SGST)
	})

	t.Run("zero and negative", func(t *testing.T) {
		assert.Equal(t, Breakdown{}, Calculate(0))
		assert.Equal(t, Breakdown{}, Calculate(-50))
	})
}

func TestCalculate_NoRoundingLeak(t *testing.T) {
	// net + tax must equal gross and cgst + sgst must equal tax exactly,
	// for every amount.
	for gross := int64(1); gross <= 500000; gross++ {
		b := Calculate(gross)
		if b.Net+b.Tax != gross {
			t.Fatalf("gross %d: net %d + tax %d != gross", gross, b.Net, b.Tax)
		}
		if b.CGST+b.SGST != b.Tax {
			t.Fatalf("gross %d: cgst %d + sgst %d != tax %d", gross, b.CGST, b.SGST, b.Tax)
		}
		if b.Net <= 0 {
			t.Fatalf("gross %d: non-positive net %d", gross, b.Net)
		}
	}
}
