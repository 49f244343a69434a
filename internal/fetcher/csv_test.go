package fetcher

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainCSV(t *testing.T, rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func TestStreamCSV_SemicolonMicrodata(t *testing.T) {
	input := "MANZENT;PERSONAS;VIVIENDAS\n13110011001001;120;45\n13110011001002;98;31\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: ';',
	})
	rows, err := drainCSV(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"MANZENT", "PERSONAS", "VIVIENDAS"}, rows[0])
	assert.Equal(t, []string{"13110011001001", "120", "45"}, rows[1])
}

func TestStreamCSV_DefaultComma(t *testing.T) {
	input := "codigo,nombre\n13110,San Joaquín\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := drainCSV(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"13110", "San Joaquín"}, rows[1])
}

func TestStreamCSV_HeaderChannel(t *testing.T) {
	input := "COMUNA;NOM_COMUNA\n13110;SAN JOAQUIN\n13101;SANTIAGO\n"
	headerCh := make(chan []string, 1)

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: ';',
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	rows, err := drainCSV(t, rowCh, errCh)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, []string{"13110", "SAN JOAQUIN"}, rows[0])

	header := <-headerCh
	assert.Equal(t, []string{"COMUNA", "NOM_COMUNA"}, header)
}

func TestStreamCSV_TrimSpace(t *testing.T) {
	input := " MANZENT ; PERSONAS \n 13110011001001 ; 120 \n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: ';',
		TrimSpace: true,
	})
	rows, err := drainCSV(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"MANZENT", "PERSONAS"}, rows[0])
	assert.Equal(t, []string{"13110011001001", "120"}, rows[1])
}

func TestStreamCSV_LazyQuotes(t *testing.T) {
	input := "codigo;nombre\n13110;zona \"centro\" sur\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter:  ';',
		LazyQuotes: true,
	})
	rows, err := drainCSV(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestStreamCSV_VariableFieldCounts(t *testing.T) {
	input := "a;b;c\n1;2\n3;4;5;6\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: ';',
	})
	rows, err := drainCSV(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Len(t, rows[1], 2)
	assert.Len(t, rows[2], 4)
}

func TestStreamCSV_Empty(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(""), CSVOptions{})
	rows, err := drainCSV(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestStreamCSV_ReadError(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), brokenReader{}, CSVOptions{})
	_, err := drainCSV(t, rowCh, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
}

func TestStreamCSV_ContextCancelled(t *testing.T) {
	var sb strings.Builder
	for range 10000 {
		sb.WriteString("13110011001001;120;45\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	rowCh, errCh := StreamCSV(ctx, strings.NewReader(sb.String()), CSVOptions{Delimiter: ';'})

	count := 0
	for range rowCh {
		count++
		if count >= 5 {
			cancel()
			break
		}
	}
	for range rowCh {
	}

	var gotErr error
	for err := range errCh {
		gotErr = err
	}
	if gotErr != nil {
		assert.Contains(t, gotErr.Error(), "context cancelled")
	}
	cancel()
}
