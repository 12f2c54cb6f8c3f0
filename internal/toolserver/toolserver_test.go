package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/flowloop/agentsdk/internal/protocol"
)

func rawID(n int) json.RawMessage { return json.RawMessage([]byte{'0' + byte(n)}) }

func TestNormalizeSchemaCompactMapping(t *testing.T) {
	schema := normalizeSchema(InputSchema{"city": "string", "days": "number"})

	if schema["type"] != "object" {
		t.Fatalf("expected object type, got %+v", schema)
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok || len(props) != 2 {
		t.Fatalf("expected 2 properties, got %+v", schema["properties"])
	}
	cityProp, ok := props["city"].(map[string]any)
	if !ok || cityProp["type"] != "string" {
		t.Fatalf("expected city: string, got %+v", props["city"])
	}
	required, ok := schema["required"].([]string)
	if !ok || len(required) != 2 {
		t.Fatalf("expected both properties required, got %+v", schema["required"])
	}
}

func TestNormalizeSchemaPassesThroughFullJSONSchema(t *testing.T) {
	full := InputSchema{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{"type": "string", "description": "a city name"},
		},
	}
	got := normalizeSchema(full)
	if got["properties"].(map[string]any)["city"].(map[string]any)["description"] != "a city name" {
		t.Fatalf("full schema should pass through untouched, got %+v", got)
	}
}

func TestNormalizeSchemaNilYieldsEmptyObject(t *testing.T) {
	got := normalizeSchema(nil)
	if got["type"] != "object" {
		t.Fatalf("expected object type for nil schema, got %+v", got)
	}
	props, ok := got["properties"].(map[string]any)
	if !ok || len(props) != 0 {
		t.Fatalf("expected empty properties, got %+v", got["properties"])
	}
}

func TestServerHandleInitialize(t *testing.T) {
	s := NewServer("weather", "")
	resp := s.handle(context.Background(), protocol.RPCRequest{JSONRPC: "2.0", ID: rawID(1), Method: "initialize"})

	var result map[string]any
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	info, ok := result["serverInfo"].(map[string]any)
	if !ok || info["name"] != "weather" || info["version"] != "1.0.0" {
		t.Fatalf("unexpected serverInfo: %+v", info)
	}
}

func TestServerHandleListPreservesRegistrationOrder(t *testing.T) {
	s := NewServer("calc", "2.0.0")
	s.Register(Tool{Name: "add", Description: "adds", InputSchema: InputSchema{"a": "number"}})
	s.Register(Tool{Name: "sub", Description: "subtracts", InputSchema: InputSchema{"a": "number"}})

	resp := s.handle(context.Background(), protocol.RPCRequest{ID: rawID(2), Method: "tools/list"})
	var result struct {
		Tools []map[string]any `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(result.Tools) != 2 || result.Tools[0]["name"] != "add" || result.Tools[1]["name"] != "sub" {
		t.Fatalf("unexpected tool ordering: %+v", result.Tools)
	}
}

func TestServerHandleListIncludesAnnotationsWhenPresent(t *testing.T) {
	s := NewServer("calc", "")
	s.Register(Tool{Name: "add", Annotations: Annotations{"readOnlyHint": true}})

	resp := s.handle(context.Background(), protocol.RPCRequest{ID: rawID(1), Method: "tools/list"})
	var result struct {
		Tools []map[string]any `json:"tools"`
	}
	json.Unmarshal(resp.Result, &result)
	ann, ok := result.Tools[0]["annotations"].(map[string]any)
	if !ok || ann["readOnlyHint"] != true {
		t.Fatalf("expected annotations to be passed through, got %+v", result.Tools[0])
	}
}

func TestServerReRegisterReplacesWithoutReordering(t *testing.T) {
	s := NewServer("calc", "")
	s.Register(Tool{Name: "add", Description: "v1"})
	s.Register(Tool{Name: "sub", Description: "v1"})
	s.Register(Tool{Name: "add", Description: "v2"})

	resp := s.handle(context.Background(), protocol.RPCRequest{ID: rawID(1), Method: "tools/list"})
	var result struct {
		Tools []map[string]any `json:"tools"`
	}
	json.Unmarshal(resp.Result, &result)
	if result.Tools[0]["name"] != "add" || result.Tools[0]["description"] != "v2" {
		t.Fatalf("expected add updated in place at position 0, got %+v", result.Tools)
	}
}

func TestServerHandleCallSuccess(t *testing.T) {
	s := NewServer("calc", "")
	s.Register(Tool{
		Name: "echo",
		Handler: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			return ToolResult{Content: []Content{NewTextContent(args["msg"].(string))}}, nil
		},
	})

	params, _ := json.Marshal(callToolParams{Name: "echo", Arguments: map[string]any{"msg": "hi"}})
	resp := s.handle(context.Background(), protocol.RPCRequest{ID: rawID(1), Method: "tools/call", Params: params})

	var result struct {
		Content []map[string]any `json:"content"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0]["text"] != "hi" {
		t.Fatalf("unexpected call result: %+v", result)
	}
}

func TestServerHandleCallUnknownToolReturnsMethodNotFound(t *testing.T) {
	s := NewServer("calc", "")
	params, _ := json.Marshal(callToolParams{Name: "missing"})
	resp := s.handle(context.Background(), protocol.RPCRequest{ID: rawID(1), Method: "tools/call", Params: params})

	if resp.Error == nil || resp.Error.Code != protocol.RPCMethodNotFound {
		t.Fatalf("expected -32601 for unknown tool, got %+v", resp.Error)
	}
}

func TestServerHandleCallHandlerErrorBecomesInternalError(t *testing.T) {
	s := NewServer("calc", "")
	s.Register(Tool{
		Name: "fails",
		Handler: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			return ToolResult{}, errors.New("boom")
		},
	})
	params, _ := json.Marshal(callToolParams{Name: "fails"})
	resp := s.handle(context.Background(), protocol.RPCRequest{ID: rawID(1), Method: "tools/call", Params: params})

	if resp.Error == nil || resp.Error.Code != protocol.RPCInternalError {
		t.Fatalf("expected -32603 for handler error, got %+v", resp.Error)
	}
}

func TestServerHandleCallRecoversFromPanic(t *testing.T) {
	s := NewServer("calc", "")
	s.Register(Tool{
		Name: "panics",
		Handler: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			panic("kaboom")
		},
	})
	params, _ := json.Marshal(callToolParams{Name: "panics"})
	resp := s.handle(context.Background(), protocol.RPCRequest{ID: rawID(1), Method: "tools/call", Params: params})

	if resp.Error == nil || resp.Error.Code != protocol.RPCInternalError {
		t.Fatalf("expected panic recovered as internal error, got %+v", resp.Error)
	}
}

func TestServerHandleCallIsErrorFlagPropagates(t *testing.T) {
	s := NewServer("calc", "")
	s.Register(Tool{
		Name: "soft-fail",
		Handler: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			return ToolResult{Content: []Content{NewTextContent("nope")}, IsError: true}, nil
		},
	})
	params, _ := json.Marshal(callToolParams{Name: "soft-fail"})
	resp := s.handle(context.Background(), protocol.RPCRequest{ID: rawID(1), Method: "tools/call", Params: params})

	var result map[string]any
	json.Unmarshal(resp.Result, &result)
	if result["is_error"] != true {
		t.Fatalf("expected is_error true, got %+v", result)
	}
}

func TestServerHandleUnknownMethod(t *testing.T) {
	s := NewServer("calc", "")
	resp := s.handle(context.Background(), protocol.RPCRequest{ID: rawID(1), Method: "nope"})
	if resp.Error == nil || resp.Error.Code != protocol.RPCMethodNotFound {
		t.Fatalf("expected -32601 for unknown method, got %+v", resp.Error)
	}
}

func TestServerHandleNotificationsInitialized(t *testing.T) {
	s := NewServer("calc", "")
	resp := s.handle(context.Background(), protocol.RPCRequest{ID: rawID(1), Method: "notifications/initialized"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
}

func TestRegistryDispatchUnknownServer(t *testing.T) {
	r := NewRegistry()
	resp := r.Dispatch(context.Background(), "missing", protocol.RPCRequest{ID: rawID(1), Method: "tools/list"})
	if resp.Error == nil || resp.Error.Code != protocol.RPCMethodNotFound {
		t.Fatalf("expected -32601 for unknown server, got %+v", resp.Error)
	}
}

func TestRegistryDispatchRoutesByName(t *testing.T) {
	r := NewRegistry()
	r.Add(NewServer("alpha", ""))
	r.Add(NewServer("beta", ""))

	resp := r.Dispatch(context.Background(), "beta", protocol.RPCRequest{ID: rawID(1), Method: "initialize"})
	var result map[string]any
	json.Unmarshal(resp.Result, &result)
	info := result["serverInfo"].(map[string]any)
	if info["name"] != "beta" {
		t.Fatalf("dispatched to wrong server, got %+v", info)
	}
}

func TestRegistryNamesReturnsAllRegistered(t *testing.T) {
	r := NewRegistry()
	r.Add(NewServer("alpha", ""))
	r.Add(NewServer("beta", ""))

	names := r.Names()
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %v", names)
	}
}

func TestTranslateContentText(t *testing.T) {
	item, ok := translateContent(NewTextContent("hi"))
	if !ok || item["type"] != "text" || item["text"] != "hi" {
		t.Fatalf("unexpected text translation: %+v", item)
	}
}

func TestTranslateContentImage(t *testing.T) {
	item, ok := translateContent(Content{Kind: ContentImage, Data: "base64data", MimeType: "image/png"})
	if !ok || item["type"] != "image" || item["data"] != "base64data" || item["mimeType"] != "image/png" {
		t.Fatalf("unexpected image translation: %+v", item)
	}
}

func TestTranslateContentResourceLinkDropped(t *testing.T) {
	_, ok := translateContent(Content{Kind: "resource_link"})
	if ok {
		t.Fatal("resource_link content should be dropped")
	}
}

func TestToDocumentByURIScheme(t *testing.T) {
	doc, ok := toDocument(Content{Kind: ContentResource, URI: "document://base64", MimeType: "application/pdf", Blob: "YmFzZTY0"})
	if !ok {
		t.Fatal("expected document translation")
	}
	source := doc["source"].(map[string]any)
	if source["type"] != "base64" || source["media_type"] != "application/pdf" || source["data"] != "YmFzZTY0" {
		t.Fatalf("unexpected document source: %+v", source)
	}
}

func TestToDocumentByPDFMimeTypeWithoutScheme(t *testing.T) {
	doc, ok := toDocument(Content{Kind: ContentResource, MimeType: "application/pdf", Blob: "data"})
	if !ok {
		t.Fatal("expected document translation for application/pdf mime type")
	}
	if doc["source"].(map[string]any)["type"] != "base64" {
		t.Fatalf("expected default base64 source type, got %+v", doc)
	}
}

func TestToDocumentRejectsNonDocumentResource(t *testing.T) {
	_, ok := toDocument(Content{Kind: ContentResource, URI: "file://x", MimeType: "text/plain"})
	if ok {
		t.Fatal("non-document resource should not translate")
	}
}
