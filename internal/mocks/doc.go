// Package mocks holds test doubles for the store, generation and event ports.
//
// MockTaskStore, MockGenerator and MockEventEmitter expose one function field
// per method and record their calls; a nil field falls back to a working
// default. TestifyMockImageStore uses testify/mock for strict expectations:
//
//	images := new(mocks.TestifyMockImageStore)
//	images.On("FindByHash", mock.Anything, "abc").Return(nil, store.ErrImageNotFound)
//	defer images.AssertExpectations(t)
package mocks
