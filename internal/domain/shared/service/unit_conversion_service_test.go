package service

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitConversionService_Convert(t *testing.T) {
	svc := NewUnitConversionService()

	tests := []struct {
		name     string
		quantity decimal.Decimal
		from     string
		to       string
		want     decimal.Decimal
	}{
		{
			name:     "direct rule litres to millilitres",
			quantity: decimal.NewFromFloat(1.5),
			from:     "l",
			to:       "ml",
			want:     decimal.NewFromInt(1500),
		},
		{
			name:     "reverse rule millilitres to litres",
			quantity: decimal.NewFromInt(250),
			from:     "ml",
			to:       "l",
			want:     decimal.NewFromFloat(0.25),
		},
		{
			name:     "two hops litres to drops",
			quantity: decimal.NewFromInt(1),
			from:     "l",
			to:       "drops",
			want:     decimal.NewFromInt(20000),
		},
		{
			name:     "through a shared node tablespoons to teaspoons",
			quantity: decimal.NewFromInt(2),
			from:     "tbsp",
			to:       "tsp",
			want:     decimal.NewFromInt(6),
		},
		{
			name:     "mass chain kg to mg",
			quantity: decimal.NewFromFloat(0.002),
			from:     "kg",
			to:       "mg",
			want:     decimal.NewFromInt(2000),
		},
		{
			name:     "fractional factor fluid ounces",
			quantity: decimal.NewFromInt(2),
			from:     "fl_oz",
			to:       "ml",
			want:     decimal.NewFromFloat(59.147),
		},
		{
			name:     "case and whitespace are ignored",
			quantity: decimal.NewFromInt(3),
			from:     " ML ",
			to:       "Drops",
			want:     decimal.NewFromInt(60),
		},
		{
			name:     "identity for same unit",
			quantity: decimal.NewFromInt(7),
			from:     "pcs",
			to:       "pcs",
			want:     decimal.NewFromInt(7),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.Convert(tt.quantity, tt.from, tt.to)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(result.TargetQuantity), "want %s, got %s", tt.want, result.TargetQuantity)
		})
	}
}

func TestUnitConversionService_Convert_Path(t *testing.T) {
	svc := NewUnitConversionService()

	result, err := svc.Convert(decimal.NewFromInt(1), "l", "drops")
	require.NoError(t, err)
	assert.Equal(t, []string{"l", "ml", "drops"}, result.Path)
}

func TestUnitConversionService_Convert_Failures(t *testing.T) {
	svc := NewUnitConversionService()

	t.Run("no path between volume and mass", func(t *testing.T) {
		_, err := svc.Convert(decimal.NewFromInt(1), "ml", "g")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnitConversionFailed))
	})

	t.Run("unknown source unit", func(t *testing.T) {
		_, err := svc.Convert(decimal.NewFromInt(1), "barrel", "ml")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnitConversionFailed))
	})
}

func TestUnitConversionService_Convert_KeepsSmallQuantities(t *testing.T) {
	svc := NewUnitConversionService()

	drop, err := svc.Convert(decimal.NewFromInt(1), "drops", "l")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.00005").Equal(drop.TargetQuantity), drop.TargetQuantity.String())

	milligram, err := svc.Convert(decimal.NewFromInt(1), "mg", "kg")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.000001").Equal(milligram.TargetQuantity), milligram.TargetQuantity.String())
	assert.True(t, milligram.TargetQuantity.IsPositive())
}

func TestNewUnitConversionServiceWithRules_RejectsInvalidRules(t *testing.T) {
	tests := []struct {
		name string
		rule ConversionRule
	}{
		{"zero factor", ConversionRule{From: "vial", To: "ml", Factor: decimal.Zero}},
		{"negative factor", ConversionRule{From: "vial", To: "ml", Factor: decimal.NewFromInt(-2)}},
		{"empty unit", ConversionRule{From: " ", To: "ml", Factor: decimal.NewFromInt(2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := append(DefaultConversionRules(), tt.rule)
			svc, err := NewUnitConversionServiceWithRules(rules)
			assert.Error(t, err)
			assert.Nil(t, svc)
		})
	}

	svc, err := NewUnitConversionServiceWithRules(DefaultConversionRules())
	require.NoError(t, err)
	assert.True(t, svc.HasUnit("fl_oz"))
}

func TestUnitConversionService_AddRule(t *testing.T) {
	svc, err := NewUnitConversionServiceWithRules(nil)
	require.NoError(t, err)
	assert.False(t, svc.HasUnit("capsule"))

	require.NoError(t, svc.AddRule("capsule", "mg", decimal.NewFromInt(500)))
	assert.True(t, svc.HasUnit("capsule"))

	result, err := svc.Convert(decimal.NewFromInt(1500), "mg", "capsule")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(3).Equal(result.TargetQuantity))

	assert.Error(t, svc.AddRule("capsule", "mg", decimal.Zero))
	assert.Error(t, svc.AddRule("capsule", "mg", decimal.NewFromInt(-1)))
	assert.Error(t, svc.AddRule("", "mg", decimal.NewFromInt(1)))
}

func TestUnitConversionService_ConvertToBaseUnit(t *testing.T) {
	svc := NewUnitConversionService()
	rate := decimal.NewFromInt(30)
	zero := decimal.Zero

	assert.True(t, decimal.NewFromInt(60).Equal(svc.ConvertToBaseUnit(decimal.NewFromInt(2), &rate)))
	assert.True(t, decimal.NewFromInt(2).Equal(svc.ConvertToBaseUnit(decimal.NewFromInt(2), nil)))
	assert.True(t, decimal.NewFromInt(2).Equal(svc.ConvertToBaseUnit(decimal.NewFromInt(2), &zero)))
}
