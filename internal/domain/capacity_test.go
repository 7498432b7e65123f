package domain_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertarktes/venue-ticketing/internal/domain"
)

func sectioned() domain.Venue {
	return domain.Venue{
		Name:        "Arena",
		Capacity:    100,
		HasSections: true,
		Sections:    []domain.Section{{Name: "A", Capacity: 60}, {Name: "B", Capacity: 40}},
	}
}

func general() domain.Venue {
	return domain.Venue{Name: "Hall", Capacity: 100}
}

func tt(name string, price int64, qty int) domain.TicketType {
	return domain.TicketType{Type: name, Price: decimal.NewFromInt(price), Quantity: qty}
}

func TestValidateVenue(t *testing.T) {
	require.NoError(t, domain.ValidateVenue(sectioned()))
	require.NoError(t, domain.ValidateVenue(general()))

	cases := map[string]func(v *domain.Venue){
		"empty name":        func(v *domain.Venue) { v.Name = " " },
		"zero capacity":     func(v *domain.Venue) { v.Capacity = 0 },
		"sum mismatch":      func(v *domain.Venue) { v.Sections[1].Capacity = 39 },
		"duplicate section": func(v *domain.Venue) { v.Sections[1].Name = "A" },
		"empty section":     func(v *domain.Venue) { v.Sections[0].Name = "" },
		"no sections":       func(v *domain.Venue) { v.Sections = nil },
		"zero section":      func(v *domain.Venue) { v.Sections[0].Capacity = 0; v.Sections[1].Capacity = 100 },
		"oversized venue": func(v *domain.Venue) {
			v.Capacity = domain.MaxCapacity + 40
			v.Sections[0].Capacity = domain.MaxCapacity
		},
		"oversized section": func(v *domain.Venue) { v.Sections[0].Capacity = domain.MaxCapacity + 60 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			v := sectioned()
			mutate(&v)
			err := domain.ValidateVenue(v)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation))
		})
	}

	t.Run("general admission at the limit", func(t *testing.T) {
		v := general()
		v.Capacity = domain.MaxCapacity
		require.NoError(t, domain.ValidateVenue(v))
		v.Capacity = 100_000_000
		var verr *domain.ValidationError
		require.True(t, errors.As(domain.ValidateVenue(v), &verr))
		assert.Equal(t, "capacity", verr.Field)
	})

	t.Run("sections without flag", func(t *testing.T) {
		v := general()
		v.Sections = []domain.Section{{Name: "A", Capacity: 100}}
		assert.True(t, errors.Is(domain.ValidateVenue(v), domain.ErrValidation))
	})
}

func TestCheckVenueIntegrity(t *testing.T) {
	v := sectioned()
	require.NoError(t, domain.CheckVenueIntegrity(v))
	v.Capacity = 120
	assert.True(t, errors.Is(domain.CheckVenueIntegrity(v), domain.ErrIntegrity))
}

func TestValidateTicketTypes_Sectioned(t *testing.T) {
	out, err := domain.ValidateTicketTypes(sectioned(), []domain.TicketType{tt("A", 10, 60), tt("B", 20, 40)})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 60, *out[0].Available)
	assert.Equal(t, 40, *out[1].Available)

	cases := map[string][]domain.TicketType{
		"missing section":  {tt("A", 10, 60)},
		"extra type":       {tt("A", 10, 60), tt("B", 20, 40), tt("C", 5, 1)},
		"renamed type":     {tt("A", 10, 60), tt("b", 20, 40)},
		"duplicate type":   {tt("A", 10, 30), tt("A", 10, 30), tt("B", 20, 40)},
		"over section cap": {tt("A", 10, 61), tt("B", 20, 40)},
	}
	for name, types := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := domain.ValidateTicketTypes(sectioned(), types)
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, "tickets", verr.Field)
		})
	}
}

func TestValidateTicketTypes_General(t *testing.T) {
	_, err := domain.ValidateTicketTypes(general(), []domain.TicketType{tt("Regular", 10, 80), tt("VIP", 50, 30)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Contains(t, err.Error(), "exceeds venue capacity")

	out, err := domain.ValidateTicketTypes(general(), []domain.TicketType{tt("Regular", 10, 70), tt("VIP", 50, 30)})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestValidateTicketTypes_FieldRules(t *testing.T) {
	neg := tt("A", 10, 60)
	neg.Price = decimal.NewFromInt(-1)
	cases := map[string][]domain.TicketType{
		"empty list":        nil,
		"empty type":        {tt("", 10, 1)},
		"negative price":    {neg},
		"negative quantity": {tt("A", 10, -1)},
	}
	for name, types := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := domain.ValidateTicketTypes(general(), types)
			assert.True(t, errors.Is(err, domain.ErrValidation))
		})
	}
}

func TestValidateTicketTypes_PriceFitsStorage(t *testing.T) {
	withPrice := func(p string) []domain.TicketType {
		t := tt("Regular", 0, 10)
		t.Price = decimal.RequireFromString(p)
		return []domain.TicketType{t}
	}

	for _, ok := range []string{"0", "19.99", "1.500", "9999999999.99"} {
		_, err := domain.ValidateTicketTypes(general(), withPrice(ok))
		assert.NoError(t, err, ok)
	}
	for _, bad := range []string{"0.005", "12345678901.5", "1e20", "10000000000"} {
		t.Run(bad, func(t *testing.T) {
			_, err := domain.ValidateTicketTypes(general(), withPrice(bad))
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, "tickets", verr.Field)
		})
	}
}

func TestValidateTicketTypes_FieldRulesRunFirst(t *testing.T) {
	// An empty type is reported before the section bijection is checked.
	_, err := domain.ValidateTicketTypes(sectioned(), []domain.TicketType{tt("", 10, 1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty type")
}

func TestValidateTicketTypes_ClampsAvailable(t *testing.T) {
	over, under, mid := 500, -3, 7
	types := []domain.TicketType{tt("A", 1, 10), tt("B", 1, 10), tt("C", 1, 10), tt("D", 1, 10)}
	types[0].Available = &over
	types[1].Available = &under
	types[2].Available = &mid

	out, err := domain.ValidateTicketTypes(general(), types)
	require.NoError(t, err)
	assert.Equal(t, 10, *out[0].Available)
	assert.Equal(t, 0, *out[1].Available)
	assert.Equal(t, 7, *out[2].Available)
	assert.Equal(t, 10, *out[3].Available)
	assert.Equal(t, 500, *types[0].Available, "input must not be modified")
}
