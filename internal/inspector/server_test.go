package inspector

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keystone-orm/keystone/internal/meta"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	mgr := meta.NewMetaDataManager()

	customer := meta.NewClassMetaData("app.model", "Customer")
	id := meta.NewMemberMetaData("id", &meta.TypeSpec{Kind: meta.KindLong, GoType: "int64"})
	id.PrimaryKey = true
	require.NoError(t, customer.AddMember(id))
	require.NoError(t, customer.AddMember(
		meta.NewMemberMetaData("name", &meta.TypeSpec{Kind: meta.KindString, GoType: "string"})))
	require.NoError(t, mgr.Register(customer))

	vip := meta.NewClassMetaData("app.model", "VIPCustomer")
	vip.SuperclassName = "app.model.Customer"
	require.NoError(t, vip.AddMember(
		meta.NewMemberMetaData("tier", &meta.TypeSpec{Kind: meta.KindInt, GoType: "int32"})))
	require.NoError(t, mgr.Register(vip))

	order := meta.NewClassMetaData("app.model", "Order")
	orderID := meta.NewMemberMetaData("id", &meta.TypeSpec{Kind: meta.KindLong, GoType: "int64"})
	orderID.PrimaryKey = true
	require.NoError(t, order.AddMember(orderID))
	require.NoError(t, order.AddMember(
		meta.NewMemberMetaData("customer", &meta.TypeSpec{
			Kind:   meta.KindReference,
			GoType: "*Customer",
			Target: "app.model.Customer",
		})))
	require.NoError(t, mgr.Register(order))

	return NewServer(mgr, nil)
}

func doGet(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body),
		"response must be JSON: %s", rec.Body.String())
	return rec, body
}

func TestListClasses(t *testing.T) {
	s := newTestServer(t)

	rec, body := doGet(t, s, "/classes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	assert.EqualValues(t, 3, body["count"])
	classes := body["classes"].([]interface{})
	require.Len(t, classes, 3)

	first := classes[0].(map[string]interface{})
	assert.Equal(t, "app.model.Customer", first["fullName"])
	assert.Equal(t, "initialised", first["state"])
}

func TestShowClass(t *testing.T) {
	s := newTestServer(t)

	t.Run("known class", func(t *testing.T) {
		rec, body := doGet(t, s, "/classes/app.model.Order")
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Equal(t, "Order", body["name"])
		assert.Equal(t, "application", body["identityType"])

		members := body["members"].([]interface{})
		require.Len(t, members, 2)

		customer := members[0].(map[string]interface{})
		if customer["name"] != "customer" {
			customer = members[1].(map[string]interface{})
		}
		assert.Equal(t, "many_to_one", customer["relation"])

		refs := body["referencedClasses"].([]interface{})
		assert.Contains(t, refs, "app.model.Customer")
	})

	t.Run("unknown class", func(t *testing.T) {
		rec, body := doGet(t, s, "/classes/app.model.Missing")
		require.Equal(t, http.StatusNotFound, rec.Code)

		errBody := body["error"].(map[string]interface{})
		assert.Equal(t, "M003", errBody["code"])
	})
}

func TestSubclasses(t *testing.T) {
	s := newTestServer(t)

	rec, body := doGet(t, s, "/classes/app.model.Customer/subclasses")
	require.Equal(t, http.StatusOK, rec.Code)

	subclasses := body["subclasses"].([]interface{})
	require.Len(t, subclasses, 1)
	assert.Equal(t, "app.model.VIPCustomer", subclasses[0])
}

func TestGraph(t *testing.T) {
	s := newTestServer(t)

	rec, body := doGet(t, s, "/graph")
	require.Equal(t, http.StatusOK, rec.Code)

	order := body["order"].([]interface{})
	require.Len(t, order, 3)

	// Referenced classes come before their dependents.
	index := make(map[string]int)
	for i, name := range order {
		index[name.(string)] = i
	}
	assert.Less(t, index["app.model.Customer"], index["app.model.Order"])

	edges := body["edges"].([]interface{})
	assert.NotEmpty(t, edges)
}

func TestIssueIdentity(t *testing.T) {
	t.Run("datastore identity class gets a surrogate key", func(t *testing.T) {
		mgr := meta.NewMetaDataManager()
		event := meta.NewClassMetaData("app.model", "AuditEvent")
		require.NoError(t, event.AddMember(
			meta.NewMemberMetaData("message", &meta.TypeSpec{Kind: meta.KindString, GoType: "string"})))
		require.NoError(t, mgr.Register(event))
		s := NewServer(mgr, nil)

		req := httptest.NewRequest(http.MethodPost, "/classes/app.model.AuditEvent/identity", nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "app.model.AuditEvent", body["class"])
		assert.NotEmpty(t, body["key"])
		assert.Contains(t, body["id"], "[app.model.AuditEvent]")
	})

	t.Run("application identity class is rejected", func(t *testing.T) {
		s := newTestServer(t)

		req := httptest.NewRequest(http.MethodPost, "/classes/app.model.Customer/identity", nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		errBody := body["error"].(map[string]interface{})
		assert.Equal(t, "M114", errBody["code"])
	})
}

func TestWarnings(t *testing.T) {
	mgr := meta.NewMetaDataManager()

	// Composite primary key with no object-id class produces a warning.
	account := meta.NewClassMetaData("app.model", "Account")
	region := meta.NewMemberMetaData("region", &meta.TypeSpec{Kind: meta.KindString, GoType: "string"})
	region.PrimaryKey = true
	number := meta.NewMemberMetaData("number", &meta.TypeSpec{Kind: meta.KindLong, GoType: "int64"})
	number.PrimaryKey = true
	require.NoError(t, account.AddMember(region))
	require.NoError(t, account.AddMember(number))
	require.NoError(t, mgr.Register(account))
	require.NoError(t, mgr.ResolveAll())

	s := NewServer(mgr, nil)
	rec, body := doGet(t, s, "/warnings")
	require.Equal(t, http.StatusOK, rec.Code)

	warnings := body["warnings"].([]interface{})
	require.NotEmpty(t, warnings)
	first := warnings[0].(map[string]interface{})
	assert.Equal(t, "M113", first["code"])
	assert.Equal(t, "app.model.Account", first["class"])
}
