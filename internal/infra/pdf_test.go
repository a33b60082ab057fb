package infra

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"restorant/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildVentaTicket() *model.Venta {
	prod, esp := uuid.New(), uuid.New()
	return &model.Venta{
		ID:            uuid.New(),
		PedidoID:      uuid.New(),
		MesaID:        "12",
		NumeroPedido:  "20260520-774310",
		Total:         decimal.NewFromInt(11000),
		CantidadItems: 3,
		MetodoPago:    "efectivo",
		LiquidadaAt:   time.Date(2026, 5, 20, 21, 30, 0, 0, time.UTC),
		Detalles: []model.DetalleVenta{
			{ProductoID: &prod, Nombre: "Milanesa napolitana con papas fritas", Categoria: "principal",
				Cantidad: 2, PrecioUnitario: decimal.NewFromInt(2500), Subtotal: decimal.NewFromInt(5000)},
			{EspecialID: &esp, Nombre: "Menú del día", Categoria: model.CategoriaEspecial,
				Cantidad: 1, PrecioUnitario: decimal.NewFromInt(6000), Subtotal: decimal.NewFromInt(6000)},
		},
	}
}

func TestGenerateTicketPDF_Exitoso(t *testing.T) {
	tmpDir := t.TempDir()

	pdfPath, err := GenerateTicketPDF(buildVentaTicket(), tmpDir, "Cantina Don Tito")
	require.NoError(t, err)
	assert.Equal(t, "ticket_20260520-774310.pdf", filepath.Base(pdfPath))

	info, statErr := os.Stat(pdfPath)
	require.NoError(t, statErr)
	assert.Greater(t, info.Size(), int64(100), "PDF should have content > 100 bytes")
}

func TestGenerateTicketPDF_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tickets", "2026")
	_, err := GenerateTicketPDF(buildVentaTicket(), dir, "Local")
	require.NoError(t, err)
	_, statErr := os.Stat(dir)
	assert.NoError(t, statErr)
}

func TestRenderTicketPDF_Stream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTicketPDF(&buf, buildVentaTicket(), "Local"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
