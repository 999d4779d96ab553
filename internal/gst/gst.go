// Package gst computes the inclusive-GST breakdown of a gross payment.
// Both the top-up flow and the invoice generator use it, so the credited
// wallet amount and the invoice figures can never diverge.
package gst

// RateBasisPoints is the GST rate in basis points (18%).
const RateBasisPoints int64 = 1800

const denomBasisPoints = 10000 + RateBasisPoints

// Breakdown of a gross amount that already includes GST. All fields in paise.
type Breakdown struct {
	// Net is the pre-tax amount, rounded half-up. This is what gets
	// credited to the wallet.
	Net int64
	// Tax is gross minus net, so Net+Tax == gross exactly.
	Tax int64
	// CGST is half the tax; SGST absorbs the odd paisa so CGST+SGST == Tax.
	CGST int64
	SGST int64
}

// Calculate divides the 18% inclusive GST out of gross. Total for any
// gross >= 0; negative input is treated as zero.
func Calculate(gross int64) Breakdown {
	if gross <= 0 {
		return Breakdown{}
	}
	net := (gross*10000 + denomBasisPoints/2) / denomBasisPoints
	tax := gross - net
	cgst := tax / 2
	return Breakdown{
		Net:  net,
		Tax:  tax,
		CGST: cgst,
		SGST: tax - cgst,
	}
}
