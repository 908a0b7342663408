// Code generated in the style of mockgen for internal/transport. Hand
// maintained because the generator itself isn't run in this build, but
// the shape (Controller-backed recorder, EXPECT()) matches what
// `mockgen -source=transport.go` produces.
//
//go:generate mockgen -source=../transport.go -destination=transportmock.go -package=transportmock
package transportmock

import (
	"net"
	"reflect"

	"go.uber.org/mock/gomock"
)

// MockTransport is a mock of the Transport interface.
type MockTransport struct {
	ctrl     *gomock.Controller
	recorder *MockTransportMockRecorder
}

// MockTransportMockRecorder is the mock recorder for MockTransport.
type MockTransportMockRecorder struct {
	mock *MockTransport
}

// NewMockTransport creates a new mock instance.
func NewMockTransport(ctrl *gomock.Controller) *MockTransport {
	mock := &MockTransport{ctrl: ctrl}
	mock.recorder = &MockTransportMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockTransport) EXPECT() *MockTransportMockRecorder {
	return m.recorder
}

// SendTo mocks base method.
func (m *MockTransport) SendTo(port int, payload []byte) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SendTo", port, payload)
	ret0, _ := ret[0].(error)
	return ret0
}

// SendTo indicates an expected call of SendTo.
func (mr *MockTransportMockRecorder) SendTo(port, payload interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SendTo", reflect.TypeOf((*MockTransport)(nil).SendTo), port, payload)
}

// ReadFrom mocks base method.
func (m *MockTransport) ReadFrom() ([]byte, *net.UDPAddr, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ReadFrom")
	ret0, _ := ret[0].([]byte)
	ret1, _ := ret[1].(*net.UDPAddr)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

// ReadFrom indicates an expected call of ReadFrom.
func (mr *MockTransportMockRecorder) ReadFrom() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ReadFrom", reflect.TypeOf((*MockTransport)(nil).ReadFrom))
}

// LocalPort mocks base method.
func (m *MockTransport) LocalPort() int {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "LocalPort")
	ret0, _ := ret[0].(int)
	return ret0
}

// LocalPort indicates an expected call of LocalPort.
func (mr *MockTransportMockRecorder) LocalPort() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "LocalPort", reflect.TypeOf((*MockTransport)(nil).LocalPort))
}

// Close mocks base method.
func (m *MockTransport) Close() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Close")
	ret0, _ := ret[0].(error)
	return ret0
}

// Close indicates an expected call of Close.
func (mr *MockTransportMockRecorder) Close() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Close", reflect.TypeOf((*MockTransport)(nil).Close))
}
