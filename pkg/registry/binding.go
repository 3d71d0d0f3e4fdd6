// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package registry

import (
	"sync"
)

// binding is a bidirectional one-to-one map between connection ids and identities guarded by its own lock.
// An identity is owned by the connection that bound it last.
type binding struct {
	mu           sync.RWMutex
	byConnection map[string]string
	byIdentity   map[string]string
}

func newBinding() *binding {
	return &binding{
		byConnection: make(map[string]string),
		byIdentity:   make(map[string]string),
	}
}

// bind maps the connection to the identity. A different connection that owned the identity loses its reverse
// mapping and is returned as evicted. A connection previously bound to another identity releases it.
func (b *binding) bind(connectionID string, identity string) (evicted string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if previous, found := b.byConnection[connectionID]; found && previous != identity {
		if b.byIdentity[previous] == connectionID {
			delete(b.byIdentity, previous)
		}
	}

	if owner, found := b.byIdentity[identity]; found && owner != connectionID {
		delete(b.byConnection, owner)
		evicted, ok = owner, true
	}

	b.byConnection[connectionID] = identity
	b.byIdentity[identity] = connectionID

	return evicted, ok
}

// unbind removes the connection. The identity mapping is only removed while it still points at this connection.
func (b *binding) unbind(connectionID string) (identity string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	identity, ok = b.byConnection[connectionID]
	if !ok {
		return "", false
	}

	delete(b.byConnection, connectionID)
	if b.byIdentity[identity] == connectionID {
		delete(b.byIdentity, identity)
	}

	return identity, true
}

// unbindIdentity removes the identity and the connection that owns it.
func (b *binding) unbindIdentity(identity string) (connectionID string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	connectionID, ok = b.byIdentity[identity]
	if !ok {
		return "", false
	}

	delete(b.byIdentity, identity)
	delete(b.byConnection, connectionID)

	return connectionID, true
}

func (b *binding) lookupConnection(identity string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	connectionID, ok := b.byIdentity[identity]
	return connectionID, ok
}

func (b *binding) lookupIdentity(connectionID string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	identity, ok := b.byConnection[connectionID]
	return identity, ok
}

func (b *binding) identities() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	identities := make([]string, 0, len(b.byIdentity))
	for identity := range b.byIdentity {
		identities = append(identities, identity)
	}
	return identities
}
