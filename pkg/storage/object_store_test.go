package storage

import "testing"

func TestAvatarKey(t *testing.T) {
	key, ok := AvatarKey("user-1", "image/PNG", "abc")
	if !ok {
		t.Fatalf("expected png to be accepted")
	}
	if key != "avatars/user-1/abc.png" {
		t.Fatalf("unexpected key: %q", key)
	}
	if !IsObjectKey(key) {
		t.Fatalf("expected key to be recognised")
	}
	if _, ok := AvatarKey("user-1", "image/gif", "abc"); ok {
		t.Fatalf("expected gif to be rejected")
	}
	if IsObjectKey("https://example.com/a.png") {
		t.Fatalf("external url must not be treated as an object key")
	}
}
