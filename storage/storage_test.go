// Copyright (c) Vissimo Group
// SPDX-License-Identifier: MPL-2.0

package storage

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMem(t *testing.T) {
	t.Parallel()
	t.Run("get-set-delete", func(t *testing.T) {
		assert := assert.New(t)
		s := NewMem()
		assert.Empty(s.Get("access_token"))

		s.Set("access_token", "at-123")
		s.Set("id_token", "idt-456")
		assert.Equal("at-123", s.Get("access_token"))
		assert.Equal("idt-456", s.Get("id_token"))

		s.Set("access_token", "at-789")
		assert.Equal("at-789", s.Get("access_token"))

		s.Delete("access_token")
		assert.Empty(s.Get("access_token"))
		assert.Equal("idt-456", s.Get("id_token"))

		s.Clear()
		assert.Empty(s.Get("id_token"))
	})
	t.Run("concurrent", func(t *testing.T) {
		s := NewMem()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				s.Set(fmt.Sprintf("k%d", i), "v")
			}(i)
			go func(i int) {
				defer wg.Done()
				_ = s.Get(fmt.Sprintf("k%d", i))
			}(i)
		}
		wg.Wait()
		assert.Equal(t, "v", s.Get("k1"))
	})
}
