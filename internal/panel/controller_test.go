package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"abipanel/internal/errors"
	"abipanel/internal/events"
	"abipanel/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	validAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	otherAddress = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
	oneFuncABI   = `[{"type":"function","name":"f"}]`
)

type stubFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	calls  []string
}

func (f *stubFetcher) Fetch(_ context.Context, u string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, u)
	if err, ok := f.errs[u]; ok {
		return "", err
	}
	return f.bodies[u], nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]events.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestController(t *testing.T, search string, fetcher Fetcher) (*Controller, *store.StateStore, *MemoryLocation) {
	t.Helper()

	contracts := store.NewMemoryStore(store.DefaultSettings())
	location := NewMemoryLocation(search)
	if fetcher == nil {
		fetcher = &stubFetcher{}
	}

	c := New(context.Background(), Deps{
		Contracts: contracts,
		Fetcher:   fetcher,
		Location:  location,
		Logger:    quietLogger(),
	})
	return c, contracts, location
}

func TestUpdateContractAddress_Invalid(t *testing.T) {
	inputs := []string{
		"",
		"0xabc",
		"5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD",
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed00",
		"hello",
	}

	for _, input := range inputs {
		t.Run(fmt.Sprintf("%q", input), func(t *testing.T) {
			c, contracts, _ := newTestController(t, "", nil)
			require.NoError(t, contracts.SetContractAddress(otherAddress))

			err := c.UpdateContractAddress(input)
			require.Error(t, err)

			state := c.Snapshot()
			assert.Equal(t, otherAddress, contracts.Contract().Address)
			assert.Equal(t, "Invalid address.", state.Address.Err.Message)
			assert.Equal(t, errors.KindValidation, state.Address.Err.Kind)
			assert.Equal(t, input, state.Address.EditingValue)
		})
	}
}

func TestUpdateContractAddress_Valid(t *testing.T) {
	c, contracts, _ := newTestController(t, "", nil)

	require.Error(t, c.UpdateContractAddress("0xabc"))
	require.NoError(t, c.UpdateContractAddress(validAddress))

	state := c.Snapshot()
	assert.Equal(t, validAddress, contracts.Contract().Address)
	assert.Equal(t, validAddress, state.Contract.Address)
	assert.Nil(t, state.Address.Err)
	assert.Equal(t, "", state.Address.EditingValue)
}

func TestUpdateContractAddress_ShortAddressGated(t *testing.T) {
	c, contracts, _ := newTestController(t, "", nil)

	c.SetEditingAddress("0xabc")
	state := c.Snapshot()
	assert.False(t, state.CanSetAddress())

	// 强制调用仍然走校验
	err := c.UpdateContractAddress(state.Address.EditingValue)
	require.Error(t, err)
	assert.Equal(t, "Invalid address.", c.Snapshot().Address.Err.Message)
	assert.Equal(t, "", contracts.Contract().Address)
}

func TestUpdateAbi_Array(t *testing.T) {
	c, contracts, _ := newTestController(t, "", nil)
	require.NoError(t, contracts.SetContractAddress(validAddress))
	c.SetAbiURL("https://pending")

	abi := `[{"type":"function","name":"f"},{"type":"event","name":"E","inputs":[]}]`
	require.NoError(t, c.UpdateAbi(abi, "my.json"))

	state := c.Snapshot()
	assert.JSONEq(t, abi, string(contracts.Contract().ABI))
	assert.Equal(t, validAddress, contracts.Contract().Address)
	assert.Equal(t, "my.json", state.ABI.Label)
	assert.Equal(t, "", state.ABI.SourceURL)
	assert.Nil(t, state.ABI.Err)
}

func TestUpdateAbi_ObjectWithBothFields(t *testing.T) {
	c, contracts, _ := newTestController(t, "", nil)

	doc := fmt.Sprintf(`{"address":%q,"abi":%s}`, validAddress, oneFuncABI)
	require.NoError(t, c.UpdateAbi(doc, "deployment.json"))

	assert.Equal(t, validAddress, contracts.Contract().Address)
	assert.JSONEq(t, oneFuncABI, string(contracts.Contract().ABI))
	assert.Equal(t, "deployment.json", c.Snapshot().ABI.Label)
}

func TestUpdateAbi_ObjectWithAbiOnly(t *testing.T) {
	c, contracts, _ := newTestController(t, "", nil)
	require.NoError(t, contracts.SetContractAddress(otherAddress))

	require.NoError(t, c.UpdateAbi(fmt.Sprintf(`{"abi":%s}`, oneFuncABI), "abi-only"))

	assert.Equal(t, otherAddress, contracts.Contract().Address)
	assert.JSONEq(t, oneFuncABI, string(contracts.Contract().ABI))
}

func TestUpdateAbi_EmptyObject(t *testing.T) {
	c, contracts, _ := newTestController(t, "", nil)
	require.NoError(t, contracts.SetContractAddress(otherAddress))
	require.NoError(t, contracts.SetAbi(json.RawMessage(oneFuncABI)))

	require.NoError(t, c.UpdateAbi(`{}`, "empty"))

	state := c.Snapshot()
	assert.Equal(t, otherAddress, contracts.Contract().Address)
	assert.JSONEq(t, oneFuncABI, string(contracts.Contract().ABI))
	assert.Equal(t, "empty", state.ABI.Label)
	assert.Nil(t, state.ABI.Err)
}

func TestUpdateAbi_ObjectWithNullFields(t *testing.T) {
	c, contracts, _ := newTestController(t, "", nil)

	require.NoError(t, c.UpdateAbi(`{"address":null,"abi":null}`, "nulls"))

	assert.Equal(t, "", contracts.Contract().Address)
	assert.False(t, contracts.Contract().HasABI())
	assert.Equal(t, "nulls", c.Snapshot().ABI.Label)
}

func TestUpdateAbi_ObjectWithZeroNumbers(t *testing.T) {
	for _, doc := range []string{
		`{"address":0.0,"abi":-0}`,
		`{"address":0e10,"abi":-0.0}`,
		`{"address":"","abi":false}`,
	} {
		t.Run(doc, func(t *testing.T) {
			c, contracts, _ := newTestController(t, "", nil)

			require.NoError(t, c.UpdateAbi(doc, "zeros"))

			state := c.Snapshot()
			assert.Equal(t, "", contracts.Contract().Address)
			assert.False(t, contracts.Contract().HasABI())
			assert.Nil(t, state.Address.Err)
			assert.Nil(t, state.ABI.Err)
		})
	}
}

func TestUpdateAbi_ObjectWithInvalidAddress(t *testing.T) {
	c, contracts, _ := newTestController(t, "", nil)

	require.NoError(t, c.UpdateAbi(fmt.Sprintf(`{"address":"0xabc","abi":%s}`, oneFuncABI), "doc"))

	state := c.Snapshot()
	assert.Equal(t, "", contracts.Contract().Address)
	assert.JSONEq(t, oneFuncABI, string(contracts.Contract().ABI))
	assert.Equal(t, "Invalid address.", state.Address.Err.Message)
	assert.Nil(t, state.ABI.Err)
}

func TestUpdateAbi_Malformed(t *testing.T) {
	c, contracts, _ := newTestController(t, "", nil)
	require.NoError(t, c.UpdateAbi(oneFuncABI, "first"))

	var syntaxErr error
	var probe any
	syntaxErr = json.Unmarshal([]byte(`[{"type":`), &probe)
	require.Error(t, syntaxErr)

	err := c.UpdateAbi(`[{"type":`, "second")
	require.Error(t, err)

	state := c.Snapshot()
	assert.JSONEq(t, oneFuncABI, string(contracts.Contract().ABI))
	assert.Equal(t, "first", state.ABI.Label)
	assert.Equal(t, errors.KindParse, state.ABI.Err.Kind)
	assert.Equal(t, syntaxErr.Error(), state.ABI.Err.Message)
}

func TestUpdateAbi_ScalarRejected(t *testing.T) {
	c, contracts, _ := newTestController(t, "", nil)

	require.Error(t, c.UpdateAbi(`42`, "scalar"))

	state := c.Snapshot()
	assert.False(t, contracts.Contract().HasABI())
	assert.Equal(t, errors.CodeABIShape, state.ABI.Err.Code)
	assert.Equal(t, "", state.ABI.Label)
}

func TestUpdateAbi_ClearsPreviousError(t *testing.T) {
	c, _, _ := newTestController(t, "", nil)

	require.Error(t, c.UpdateAbi(`nope`, "bad"))
	require.NotNil(t, c.Snapshot().ABI.Err)

	require.NoError(t, c.UpdateAbi(`[]`, "good"))
	assert.Nil(t, c.Snapshot().ABI.Err)
}

func TestFetchAbi_RewritesLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/abi.json", r.URL.Path)
		fmt.Fprint(w, oneFuncABI)
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(0, "abipanel-test", 0, quietLogger())
	c, contracts, location := newTestController(t, "", fetcher)

	abiURL := srv.URL + "/abi.json"
	require.NoError(t, c.FetchAbi(context.Background(), abiURL))

	state := c.Snapshot()
	assert.JSONEq(t, oneFuncABI, string(contracts.Contract().ABI))
	assert.Equal(t, abiURL, state.ABI.Label)
	assert.Equal(t, "?abiUrl="+url.QueryEscape(abiURL), location.Search())
	assert.Equal(t, location.Search(), state.Location)
	assert.False(t, state.Loading)
}

func TestAbiURLSearch(t *testing.T) {
	assert.Equal(t, "?abiUrl=https%3A%2F%2Fx%2Fabi.json", AbiURLSearch("https://x/abi.json"))
}

func TestFetchAbi_URLEncodedQuery(t *testing.T) {
	fetcher := &stubFetcher{bodies: map[string]string{"https://x/abi.json": oneFuncABI}}
	c, contracts, location := newTestController(t, "", fetcher)

	require.NoError(t, c.FetchAbi(context.Background(), "https://x/abi.json"))

	var abi []map[string]string
	require.NoError(t, json.Unmarshal(contracts.Contract().ABI, &abi))
	assert.Equal(t, []map[string]string{{"type": "function", "name": "f"}}, abi)
	assert.Equal(t, "https://x/abi.json", c.Snapshot().ABI.Label)
	assert.Equal(t, "?abiUrl=https%3A%2F%2Fx%2Fabi.json", location.Search())
}

func TestFetchAbi_NetworkFailure(t *testing.T) {
	fetcher := &stubFetcher{errs: map[string]error{"https://down/abi.json": fmt.Errorf("dial tcp: connection refused")}}
	c, contracts, location := newTestController(t, "?address="+validAddress, fetcher)
	c.SetAbiURL("https://down/abi.json")

	err := c.FetchAbi(context.Background(), "https://down/abi.json")
	require.Error(t, err)

	state := c.Snapshot()
	assert.Equal(t, errors.KindNetwork, state.ABI.Err.Kind)
	assert.Equal(t, "dial tcp: connection refused", state.ABI.Err.Message)
	assert.Equal(t, "https://down/abi.json", state.ABI.SourceURL)
	assert.False(t, contracts.Contract().HasABI())
	assert.Equal(t, "?address="+validAddress, location.Search())
}

func TestFetchAbi_NonSuccessStatusBodyIsParsed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(0, "", 0, quietLogger())
	c, _, location := newTestController(t, "", fetcher)

	err := c.FetchAbi(context.Background(), srv.URL)
	require.Error(t, err)

	assert.Equal(t, errors.KindParse, c.Snapshot().ABI.Err.Kind)
	assert.Equal(t, AbiURLSearch(srv.URL), location.Search())
}

func TestHTTPFetcher_MaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, oneFuncABI)
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(0, "", 4, quietLogger())
	_, err := fetcher.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

type blockingFetcher struct {
	started chan string
	slowURL string
	body    string
}

func (f *blockingFetcher) Fetch(ctx context.Context, u string) (string, error) {
	f.started <- u
	if u == f.slowURL {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.body, nil
}

func TestFetchAbi_StaleResponseDiscarded(t *testing.T) {
	fetcher := &blockingFetcher{
		started: make(chan string, 2),
		slowURL: "https://slow/abi.json",
		body:    oneFuncABI,
	}
	c, contracts, location := newTestController(t, "", fetcher)

	slowDone := make(chan error, 1)
	go func() {
		slowDone <- c.FetchAbi(context.Background(), "https://slow/abi.json")
	}()
	require.Equal(t, "https://slow/abi.json", <-fetcher.started)
	assert.True(t, c.Snapshot().Loading)

	require.NoError(t, c.FetchAbi(context.Background(), "https://fast/abi.json"))
	<-fetcher.started

	assert.ErrorIs(t, <-slowDone, ErrSuperseded)

	state := c.Snapshot()
	assert.Nil(t, state.ABI.Err)
	assert.Equal(t, "https://fast/abi.json", state.ABI.Label)
	assert.JSONEq(t, oneFuncABI, string(contracts.Contract().ABI))
	assert.Equal(t, AbiURLSearch("https://fast/abi.json"), location.Search())
	assert.False(t, state.Loading)
}

func TestInitialize_FromQueryString(t *testing.T) {
	fetcher := &stubFetcher{bodies: map[string]string{"https://x/abi.json": oneFuncABI}}
	search := "?abiUrl=" + url.QueryEscape("https://x/abi.json") + "&address=" + validAddress

	c, contracts, location := newTestController(t, search, fetcher)

	assert.Equal(t, []string{"https://x/abi.json"}, fetcher.calls)
	assert.Equal(t, validAddress, contracts.Contract().Address)
	assert.JSONEq(t, oneFuncABI, string(contracts.Contract().ABI))
	assert.Equal(t, "https://x/abi.json", c.Snapshot().ABI.Label)
	assert.Equal(t, "?abiUrl=https%3A%2F%2Fx%2Fabi.json", location.Search())

	// 初始化只执行一次
	c.Snapshot()
	assert.Len(t, fetcher.calls, 1)
}

func TestInitialize_InvalidAddress(t *testing.T) {
	c, contracts, _ := newTestController(t, "?address=0xabc", nil)

	state := c.Snapshot()
	assert.Equal(t, "", contracts.Contract().Address)
	assert.Equal(t, "Invalid address.", state.Address.Err.Message)
	assert.Equal(t, "0xabc", state.Address.EditingValue)
}

func TestInitialize_IgnoresRepeatedAndEmptyParams(t *testing.T) {
	fetcher := &stubFetcher{}
	c, contracts, _ := newTestController(t, "?abiUrl=&address=a&address=b", fetcher)

	assert.Empty(t, fetcher.calls)
	assert.Equal(t, "", contracts.Contract().Address)
	assert.Nil(t, c.Snapshot().Address.Err)
}

func TestLoadFile(t *testing.T) {
	c, contracts, location := newTestController(t, "", nil)

	require.NoError(t, c.LoadFile("Token.abi.json", strings.NewReader(oneFuncABI)))

	assert.Equal(t, "Token.abi.json", c.Snapshot().ABI.Label)
	assert.JSONEq(t, oneFuncABI, string(contracts.Contract().ABI))
	assert.Equal(t, "", location.Search())
}

func TestLoadFile_ReadError(t *testing.T) {
	c, _, _ := newTestController(t, "", nil)

	err := c.LoadFile("broken.json", iotest.ErrReader(fmt.Errorf("disk gone")))
	require.Error(t, err)

	state := c.Snapshot()
	assert.Equal(t, errors.KindFile, state.ABI.Err.Kind)
	assert.Equal(t, "disk gone", state.ABI.Err.Message)
	assert.Equal(t, "", state.ABI.Label)
}

func TestGating(t *testing.T) {
	assert.False(t, CanLoad(""))
	assert.True(t, CanLoad("https://x/abi.json"))
	assert.False(t, CanSetAddress(""))
	assert.False(t, CanSetAddress("0xabc"))
	assert.True(t, CanSetAddress(validAddress))
}

func TestEventsPublished(t *testing.T) {
	publisher := &recordingPublisher{}
	c := New(context.Background(), Deps{
		Contracts: store.NewMemoryStore(store.DefaultSettings()),
		Fetcher:   &stubFetcher{},
		Publisher: publisher,
		Logger:    quietLogger(),
	})

	require.NoError(t, c.UpdateContractAddress(validAddress))
	require.Error(t, c.UpdateContractAddress("0xabc"))
	require.NoError(t, c.UpdateAbi(oneFuncABI, "abi"))
	require.Error(t, c.UpdateAbi("{", "bad"))

	assert.Equal(t, []events.EventType{events.EventAddressSet, events.EventABILoaded}, publisher.types())
}

func TestMemoryLocation(t *testing.T) {
	loc := NewMemoryLocation("abiUrl=x")
	assert.Equal(t, "?abiUrl=x", loc.Search())

	loc.Replace("?abiUrl=y")
	assert.Equal(t, "?abiUrl=y", loc.Search())
	assert.Equal(t, []string{"?abiUrl=x"}, loc.Replaced())

	assert.Equal(t, "", NewMemoryLocation("?").Search())
}
