package crypto

import "testing"

func TestKeyExchangeMatchingCodesDeriveSameKey(t *testing.T) {
	password := []byte("4-horse-river")

	sender, err := NewKeyExchange(RoleSender, password)
	if err != nil {
		t.Fatalf("NewKeyExchange(sender): %v", err)
	}
	receiver, err := NewKeyExchange(RoleReceiver, password)
	if err != nil {
		t.Fatalf("NewKeyExchange(receiver): %v", err)
	}

	senderMsg := sender.OutboundMessage()
	receiverMsg := receiver.OutboundMessage()

	if err := sender.ReceivePeerMessage(receiverMsg); err != nil {
		t.Fatalf("sender.ReceivePeerMessage: %v", err)
	}
	if err := receiver.ReceivePeerMessage(senderMsg); err != nil {
		t.Fatalf("receiver.ReceivePeerMessage: %v", err)
	}

	senderKey, err := sender.SessionKey()
	if err != nil {
		t.Fatalf("sender.SessionKey: %v", err)
	}
	receiverKey, err := receiver.SessionKey()
	if err != nil {
		t.Fatalf("receiver.SessionKey: %v", err)
	}

	if senderKey != receiverKey {
		t.Fatalf("expected matching codes to derive identical keys, got %x != %x", senderKey, receiverKey)
	}
}

func TestKeyExchangeMismatchedCodesDeriveDifferentKeys(t *testing.T) {
	sender, err := NewKeyExchange(RoleSender, []byte("4-horse-river"))
	if err != nil {
		t.Fatalf("NewKeyExchange(sender): %v", err)
	}
	receiver, err := NewKeyExchange(RoleReceiver, []byte("7-otter-canyon"))
	if err != nil {
		t.Fatalf("NewKeyExchange(receiver): %v", err)
	}

	senderMsg := sender.OutboundMessage()
	receiverMsg := receiver.OutboundMessage()

	if err := sender.ReceivePeerMessage(receiverMsg); err != nil {
		t.Fatalf("sender.ReceivePeerMessage: %v", err)
	}
	if err := receiver.ReceivePeerMessage(senderMsg); err != nil {
		t.Fatalf("receiver.ReceivePeerMessage: %v", err)
	}

	senderKey, err := sender.SessionKey()
	if err != nil {
		t.Fatalf("sender.SessionKey: %v", err)
	}
	receiverKey, err := receiver.SessionKey()
	if err != nil {
		t.Fatalf("receiver.SessionKey: %v", err)
	}

	if senderKey == receiverKey {
		t.Fatalf("expected mismatched codes to derive different keys")
	}
}

func TestKeyExchangeEndToEndWithChunkCipher(t *testing.T) {
	password := []byte("0-apple-zebra")

	sender, _ := NewKeyExchange(RoleSender, password)
	receiver, _ := NewKeyExchange(RoleReceiver, password)

	sMsg, rMsg := sender.OutboundMessage(), receiver.OutboundMessage()
	if err := sender.ReceivePeerMessage(rMsg); err != nil {
		t.Fatalf("sender update: %v", err)
	}
	if err := receiver.ReceivePeerMessage(sMsg); err != nil {
		t.Fatalf("receiver update: %v", err)
	}

	key, err := sender.SessionKey()
	if err != nil {
		t.Fatalf("SessionKey: %v", err)
	}

	cipher, err := NewChunkCipher(key)
	if err != nil {
		t.Fatalf("NewChunkCipher: %v", err)
	}
	nonce, ct := cipher.Seal([]byte("derived key works end to end"))
	if _, err := cipher.Open(nonce, ct); err != nil {
		t.Fatalf("Open: %v", err)
	}
}
