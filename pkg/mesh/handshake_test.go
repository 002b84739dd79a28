package mesh

import "testing"

func TestHandshakeSuccessfulFlow(t *testing.T) {
	const accessCode = "sunflower"
	client := NewClientHandshake(accessCode, 4242)
	server := NewServerHandshake(accessCode)

	hello := client.Hello()
	if client.State() != HandshakeAwaitChallenge {
		t.Fatalf("client state = %v, want AwaitChallenge", client.State())
	}
	env, err := DecodeEnvelope(hello)
	if err != nil || env.Type != MsgClientHello {
		t.Fatalf("unexpected hello envelope: %+v, err=%v", env, err)
	}

	challenge, err := server.OnHello()
	if err != nil {
		t.Fatalf("OnHello: %v", err)
	}
	if server.State() != HandshakeAwaitResponse {
		t.Fatalf("server state = %v, want AwaitResponse", server.State())
	}
	challengeEnv, err := DecodeEnvelope(challenge)
	if err != nil || challengeEnv.Type != MsgAuthChallenge {
		t.Fatalf("unexpected challenge envelope: %+v, err=%v", challengeEnv, err)
	}

	response, err := client.OnChallenge(challengeEnv.Payload)
	if err != nil {
		t.Fatalf("OnChallenge: %v", err)
	}
	if client.State() != HandshakeAwaitResult {
		t.Fatalf("client state = %v, want AwaitResult", client.State())
	}
	responseEnv, err := DecodeEnvelope(response)
	if err != nil || responseEnv.Type != MsgAuthResponse {
		t.Fatalf("unexpected response envelope: %+v, err=%v", responseEnv, err)
	}

	nodeID, result, err := server.OnResponse(responseEnv.Payload)
	if err != nil {
		t.Fatalf("OnResponse: %v", err)
	}
	if nodeID != 4242 {
		t.Fatalf("nodeID = %d, want 4242", nodeID)
	}
	if server.State() != HandshakeAuthenticated {
		t.Fatalf("server state = %v, want Authenticated", server.State())
	}

	resultEnv, err := DecodeEnvelope(result)
	if err != nil || resultEnv.Type != MsgAuthResult {
		t.Fatalf("unexpected result envelope: %+v, err=%v", resultEnv, err)
	}
	ok, err := client.OnResult(resultEnv.Payload)
	if err != nil {
		t.Fatalf("OnResult: %v", err)
	}
	if !ok {
		t.Fatalf("client should see a successful result")
	}
	if client.State() != HandshakeAuthenticated {
		t.Fatalf("client state = %v, want Authenticated", client.State())
	}
}

func TestHandshakeWrongAccessCodeFails(t *testing.T) {
	client := NewClientHandshake("wrong-code", 1)
	server := NewServerHandshake("correct-code")

	client.Hello()
	challenge, _ := server.OnHello()
	challengeEnv, _ := DecodeEnvelope(challenge)

	response, _ := client.OnChallenge(challengeEnv.Payload)
	responseEnv, _ := DecodeEnvelope(response)

	nodeID, result, err := server.OnResponse(responseEnv.Payload)
	if err != nil {
		t.Fatalf("OnResponse: %v", err)
	}
	if nodeID != 0 {
		t.Fatalf("failed auth should not reveal a nodeID, got %d", nodeID)
	}
	if server.State() != HandshakeFailed {
		t.Fatalf("server state = %v, want Failed", server.State())
	}
	resultEnv, _ := DecodeEnvelope(result)
	if resultEnv.Payload[0] != 0x00 {
		t.Fatalf("result payload = %v, want failure byte", resultEnv.Payload)
	}
}

func TestServerHandshakeNonceIsOneShot(t *testing.T) {
	const accessCode = "shared-secret"
	client := NewClientHandshake(accessCode, 7)
	server := NewServerHandshake(accessCode)

	client.Hello()
	challenge, _ := server.OnHello()
	challengeEnv, _ := DecodeEnvelope(challenge)
	response, _ := client.OnChallenge(challengeEnv.Payload)
	responseEnv, _ := DecodeEnvelope(response)

	_, _, err := server.OnResponse(responseEnv.Payload)
	if err != nil {
		t.Fatalf("first OnResponse: %v", err)
	}

	// A second AUTH_RESPONSE for the same link must always fail, because
	// the server is no longer in AwaitResponse (and the nonce is gone).
	_, result, err := server.OnResponse(responseEnv.Payload)
	if err != nil {
		t.Fatalf("second OnResponse: %v", err)
	}
	resultEnv, _ := DecodeEnvelope(result)
	if resultEnv.Payload[0] != 0x00 {
		t.Fatalf("replayed response should fail, got payload %v", resultEnv.Payload)
	}
}

func TestClientHandshakeOnChallengeOutOfOrder(t *testing.T) {
	client := NewClientHandshake("code", 1)
	// Skipping Hello(): client is still in AwaitHello.
	_, err := client.OnChallenge([]byte("12345678"))
	if err == nil {
		t.Fatalf("expected an error for an out-of-order AUTH_CHALLENGE")
	}
}
