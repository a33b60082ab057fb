package model

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RefKind distinguishes a catalog product from an off-menu special.
type RefKind string

const (
	RefCatalogo RefKind = "catalogo"
	RefEspecial RefKind = "especial"
)

// LineRef points at exactly one sellable item: Catalogo(id) or RefEspecialDe(id).
// The zero value is invalid.
type LineRef struct {
	Kind RefKind   `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

func Catalogo(id uuid.UUID) LineRef { return LineRef{Kind: RefCatalogo, ID: id} }
func RefEspecialDe(id uuid.UUID) LineRef { return LineRef{Kind: RefEspecial, ID: id} }

// Valid reports whether the ref carries a known kind and a non-nil id.
func (r LineRef) Valid() bool {
	return (r.Kind == RefCatalogo || r.Kind == RefEspecial) && r.ID != uuid.Nil
}

func (r LineRef) IsEspecial() bool { return r.Kind == RefEspecial }

func (r LineRef) String() string { return fmt.Sprintf("%s:%s", r.Kind, r.ID) }

// Columns splits the ref into the two nullable columns used by the
// persisted detail rows. Exactly one of the results is non-nil.
func (r LineRef) Columns() (productoID, especialID *uuid.UUID) {
	id := r.ID
	if r.Kind == RefEspecial {
		return nil, &id
	}
	return &id, nil
}

// RefFromColumns is the inverse of Columns. ok is false when both or neither
// column is set.
func RefFromColumns(productoID, especialID *uuid.UUID) (LineRef, bool) {
	switch {
	case productoID != nil && especialID == nil:
		return Catalogo(*productoID), true
	case especialID != nil && productoID == nil:
		return RefEspecialDe(*especialID), true
	default:
		return LineRef{}, false
	}
}

// LineaCuenta is one slot of an open tab. PrecioUnitario is captured when the
// line is first added and is not refreshed from the catalog afterwards; a
// captured price of 0 is a free item, not a missing price.
type LineaCuenta struct {
	Ref            LineRef         `json:"ref"`
	Cantidad       int             `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	Notas          string          `json:"notas,omitempty"`

	// SinPrecio marks a line whose caller supplied no price. Only these lines
	// are priced from the catalog.
	SinPrecio bool `json:"sin_precio,omitempty"`
}

// Subtotal = PrecioUnitario × Cantidad.
func (l LineaCuenta) Subtotal() decimal.Decimal {
	return l.PrecioUnitario.Mul(decimal.NewFromInt(int64(l.Cantidad)))
}

// Cuenta is the open tab of a mesa. Its total is always derived from Lineas.
type Cuenta struct {
	MesaID string        `json:"mesa_id"`
	Lineas []LineaCuenta `json:"lineas"`
}

func NuevaCuenta(mesaID string) *Cuenta {
	return &Cuenta{MesaID: mesaID, Lineas: []LineaCuenta{}}
}

func (c *Cuenta) indexOf(ref LineRef) int {
	for i, l := range c.Lineas {
		if l.Ref == ref {
			return i
		}
	}
	return -1
}

// Agregar adds cantidad units of ref. An existing slot keeps its captured
// price and only grows in quantity.
func (c *Cuenta) Agregar(ref LineRef, cantidad int, precio decimal.Decimal, notas string) error {
	if !ref.Valid() {
		return fmt.Errorf("referencia inválida %q", ref.String())
	}
	if cantidad <= 0 {
		return fmt.Errorf("cantidad debe ser positiva: %d", cantidad)
	}
	if precio.IsNegative() {
		return fmt.Errorf("precio negativo para %s", ref)
	}
	if i := c.indexOf(ref); i >= 0 {
		c.Lineas[i].Cantidad += cantidad
		if notas != "" {
			c.Lineas[i].Notas = notas
		}
		return nil
	}
	c.Lineas = append(c.Lineas, LineaCuenta{
		Ref:            ref,
		Cantidad:       cantidad,
		PrecioUnitario: precio,
		Notas:          notas,
	})
	return nil
}

// Decrementar lowers the quantity of ref; the slot disappears at zero.
// Returns false when the slot does not exist.
func (c *Cuenta) Decrementar(ref LineRef, cantidad int) bool {
	i := c.indexOf(ref)
	if i < 0 {
		return false
	}
	if cantidad <= 0 {
		cantidad = 1
	}
	c.Lineas[i].Cantidad -= cantidad
	if c.Lineas[i].Cantidad <= 0 {
		c.Lineas = append(c.Lineas[:i], c.Lineas[i+1:]...)
	}
	return true
}

// Quitar removes the whole slot. Returns false when it does not exist.
func (c *Cuenta) Quitar(ref LineRef) bool {
	i := c.indexOf(ref)
	if i < 0 {
		return false
	}
	c.Lineas = append(c.Lineas[:i], c.Lineas[i+1:]...)
	return true
}

func (c *Cuenta) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lineas {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (c *Cuenta) Vacia() bool { return len(c.Lineas) == 0 }

// Snapshot returns an independent copy of the lines.
func (c *Cuenta) Snapshot() []LineaCuenta {
	out := make([]LineaCuenta, len(c.Lineas))
	copy(out, c.Lineas)
	return out
}

func (c *Cuenta) MarshalBinary() ([]byte, error) { return json.Marshal(c) }

func (c *Cuenta) UnmarshalBinary(data []byte) error { return json.Unmarshal(data, c) }
