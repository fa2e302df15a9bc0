// Package mocks holds gomock doubles for the delegate service stores.
package mocks

import (
	context "context"
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"

	models "quorum/internal/delegate/models"
	domain "quorum/pkg/domain"
)

// MockDelegateStore is a mock of DelegateStore interface.
type MockDelegateStore struct {
	ctrl     *gomock.Controller
	recorder *MockDelegateStoreMockRecorder
	isgomock struct{}
}

// MockDelegateStoreMockRecorder is the mock recorder for MockDelegateStore.
type MockDelegateStoreMockRecorder struct {
	mock *MockDelegateStore
}

// NewMockDelegateStore creates a new mock instance.
func NewMockDelegateStore(ctrl *gomock.Controller) *MockDelegateStore {
	mock := &MockDelegateStore{ctrl: ctrl}
	mock.recorder = &MockDelegateStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockDelegateStore) EXPECT() *MockDelegateStoreMockRecorder {
	return m.recorder
}

// CountByEvent mocks base method.
func (m *MockDelegateStore) CountByEvent(ctx context.Context, event domain.EventID) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CountByEvent", ctx, event)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// CountByEvent indicates an expected call of CountByEvent.
func (mr *MockDelegateStoreMockRecorder) CountByEvent(ctx, event any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CountByEvent", reflect.TypeOf((*MockDelegateStore)(nil).CountByEvent), ctx, event)
}

// Create mocks base method.
func (m *MockDelegateStore) Create(ctx context.Context, d *models.Delegate) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Create", ctx, d)
	ret0, _ := ret[0].(error)
	return ret0
}

// Create indicates an expected call of Create.
func (mr *MockDelegateStoreMockRecorder) Create(ctx, d any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Create", reflect.TypeOf((*MockDelegateStore)(nil).Create), ctx, d)
}

// Delete mocks base method.
func (m *MockDelegateStore) Delete(ctx context.Context, delegateID domain.DelegateID) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Delete", ctx, delegateID)
	ret0, _ := ret[0].(error)
	return ret0
}

// Delete indicates an expected call of Delete.
func (mr *MockDelegateStoreMockRecorder) Delete(ctx, delegateID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Delete", reflect.TypeOf((*MockDelegateStore)(nil).Delete), ctx, delegateID)
}

// FindAlternateFor mocks base method.
func (m *MockDelegateStore) FindAlternateFor(ctx context.Context, electedID domain.DelegateID) (*models.Delegate, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "FindAlternateFor", ctx, electedID)
	ret0, _ := ret[0].(*models.Delegate)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// FindAlternateFor indicates an expected call of FindAlternateFor.
func (mr *MockDelegateStoreMockRecorder) FindAlternateFor(ctx, electedID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FindAlternateFor", reflect.TypeOf((*MockDelegateStore)(nil).FindAlternateFor), ctx, electedID)
}

// FindByID mocks base method.
func (m *MockDelegateStore) FindByID(ctx context.Context, delegateID domain.DelegateID) (*models.Delegate, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "FindByID", ctx, delegateID)
	ret0, _ := ret[0].(*models.Delegate)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// FindByID indicates an expected call of FindByID.
func (mr *MockDelegateStoreMockRecorder) FindByID(ctx, delegateID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FindByID", reflect.TypeOf((*MockDelegateStore)(nil).FindByID), ctx, delegateID)
}

// FindByPerson mocks base method.
func (m *MockDelegateStore) FindByPerson(ctx context.Context, person domain.PersonID) (*models.Delegate, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "FindByPerson", ctx, person)
	ret0, _ := ret[0].(*models.Delegate)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// FindByPerson indicates an expected call of FindByPerson.
func (mr *MockDelegateStoreMockRecorder) FindByPerson(ctx, person any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FindByPerson", reflect.TypeOf((*MockDelegateStore)(nil).FindByPerson), ctx, person)
}

// ListRoster mocks base method.
func (m *MockDelegateStore) ListRoster(ctx context.Context, event domain.EventID, state domain.StateCode) ([]*models.Delegate, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListRoster", ctx, event, state)
	ret0, _ := ret[0].([]*models.Delegate)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListRoster indicates an expected call of ListRoster.
func (mr *MockDelegateStoreMockRecorder) ListRoster(ctx, event, state any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListRoster", reflect.TypeOf((*MockDelegateStore)(nil).ListRoster), ctx, event, state)
}

// Update mocks base method.
func (m *MockDelegateStore) Update(ctx context.Context, d *models.Delegate) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Update", ctx, d)
	ret0, _ := ret[0].(error)
	return ret0
}

// Update indicates an expected call of Update.
func (mr *MockDelegateStoreMockRecorder) Update(ctx, d any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Update", reflect.TypeOf((*MockDelegateStore)(nil).Update), ctx, d)
}

// MockProfileStore is a mock of ProfileStore interface.
type MockProfileStore struct {
	ctrl     *gomock.Controller
	recorder *MockProfileStoreMockRecorder
	isgomock struct{}
}

// MockProfileStoreMockRecorder is the mock recorder for MockProfileStore.
type MockProfileStoreMockRecorder struct {
	mock *MockProfileStore
}

// NewMockProfileStore creates a new mock instance.
func NewMockProfileStore(ctrl *gomock.Controller) *MockProfileStore {
	mock := &MockProfileStore{ctrl: ctrl}
	mock.recorder = &MockProfileStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockProfileStore) EXPECT() *MockProfileStoreMockRecorder {
	return m.recorder
}

// Delete mocks base method.
func (m *MockProfileStore) Delete(ctx context.Context, delegateID domain.DelegateID) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Delete", ctx, delegateID)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Delete indicates an expected call of Delete.
func (mr *MockProfileStoreMockRecorder) Delete(ctx, delegateID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Delete", reflect.TypeOf((*MockProfileStore)(nil).Delete), ctx, delegateID)
}

// Find mocks base method.
func (m *MockProfileStore) Find(ctx context.Context, delegateID domain.DelegateID) (*models.Profile, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Find", ctx, delegateID)
	ret0, _ := ret[0].(*models.Profile)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Find indicates an expected call of Find.
func (mr *MockProfileStoreMockRecorder) Find(ctx, delegateID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Find", reflect.TypeOf((*MockProfileStore)(nil).Find), ctx, delegateID)
}

// Save mocks base method.
func (m *MockProfileStore) Save(ctx context.Context, p *models.Profile) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Save", ctx, p)
	ret0, _ := ret[0].(error)
	return ret0
}

// Save indicates an expected call of Save.
func (mr *MockProfileStoreMockRecorder) Save(ctx, p any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Save", reflect.TypeOf((*MockProfileStore)(nil).Save), ctx, p)
}

// MockMirrorStore is a mock of MirrorStore interface.
type MockMirrorStore struct {
	ctrl     *gomock.Controller
	recorder *MockMirrorStoreMockRecorder
	isgomock struct{}
}

// MockMirrorStoreMockRecorder is the mock recorder for MockMirrorStore.
type MockMirrorStoreMockRecorder struct {
	mock *MockMirrorStore
}

// NewMockMirrorStore creates a new mock instance.
func NewMockMirrorStore(ctrl *gomock.Controller) *MockMirrorStore {
	mock := &MockMirrorStore{ctrl: ctrl}
	mock.recorder = &MockMirrorStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockMirrorStore) EXPECT() *MockMirrorStoreMockRecorder {
	return m.recorder
}

// Create mocks base method.
func (m *MockMirrorStore) Create(ctx context.Context, mirror *models.Mirror) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Create", ctx, mirror)
	ret0, _ := ret[0].(error)
	return ret0
}

// Create indicates an expected call of Create.
func (mr *MockMirrorStoreMockRecorder) Create(ctx, mirror any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Create", reflect.TypeOf((*MockMirrorStore)(nil).Create), ctx, mirror)
}

// DeleteByPerson mocks base method.
func (m *MockMirrorStore) DeleteByPerson(ctx context.Context, person domain.PersonID, state domain.StateCode) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DeleteByPerson", ctx, person, state)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// DeleteByPerson indicates an expected call of DeleteByPerson.
func (mr *MockMirrorStoreMockRecorder) DeleteByPerson(ctx, person, state any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DeleteByPerson", reflect.TypeOf((*MockMirrorStore)(nil).DeleteByPerson), ctx, person, state)
}
