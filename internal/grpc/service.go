package server

import (
	"context"

	"google.golang.org/grpc"

	"github.com/tejusbharadwaj/elecview/internal/chart"
)

// ServiceName is the fully qualified gRPC name of the chart service.
const ServiceName = "elecview.v1.ChartService"

// ChartRequest asks for one chart. View defaults to DAY and Date (yyyy-MM-dd)
// to today.
type ChartRequest struct {
	Country string `json:"country"`
	View    string `json:"view,omitempty"`
	Date    string `json:"date,omitempty"`
}

type Empty struct{}

// SaveQueryRequest stores the given chart selection under Name.
type SaveQueryRequest struct {
	Name    string `json:"name"`
	Country string `json:"country"`
	Date    string `json:"date,omitempty"`
	View    string `json:"view,omitempty"`
}

type QueryName struct {
	Name string `json:"name"`
}

// SavedQuery is a stored query with its parameters decoded. Params is the
// stored form and is kept even when it cannot be decoded.
type SavedQuery struct {
	Name     string `json:"name"`
	Modified string `json:"modified"`
	Params   string `json:"params"`
	Country  string `json:"country,omitempty"`
	Date     string `json:"date,omitempty"`
	View     string `json:"view,omitempty"`
}

type QueryList struct {
	Queries []*SavedQuery `json:"queries"`
}

// ChartServiceServer is the server API of the chart service.
type ChartServiceServer interface {
	GetChart(ctx context.Context, req *ChartRequest) (*chart.Result, error)
	ListCountries(ctx context.Context, req *Empty) (*chart.Countries, error)
	SaveQuery(ctx context.Context, req *SaveQueryRequest) (*SavedQuery, error)
	LoadQuery(ctx context.Context, req *QueryName) (*SavedQuery, error)
	DeleteQuery(ctx context.Context, req *QueryName) (*Empty, error)
	ListQueries(ctx context.Context, req *Empty) (*QueryList, error)
}

// ChartServiceDesc describes the chart service for grpc.Server.
var ChartServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChartServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("GetChart", ChartServiceServer.GetChart),
		unaryMethod("ListCountries", ChartServiceServer.ListCountries),
		unaryMethod("SaveQuery", ChartServiceServer.SaveQuery),
		unaryMethod("LoadQuery", ChartServiceServer.LoadQuery),
		unaryMethod("DeleteQuery", ChartServiceServer.DeleteQuery),
		unaryMethod("ListQueries", ChartServiceServer.ListQueries),
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterChartServiceServer(s grpc.ServiceRegistrar, srv ChartServiceServer) {
	s.RegisterService(&ChartServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unaryMethod builds the method handler grpc-go would generate from a
// service definition.
func unaryMethod[Req any, Resp any](
	name string,
	call func(ChartServiceServer, context.Context, *Req) (Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				resp, err := call(srv.(ChartServiceServer), ctx, req.(*Req))
				if err != nil {
					return nil, err
				}
				return resp, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ChartServiceClient calls the chart service over the JSON codec.
type ChartServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewChartServiceClient(cc grpc.ClientConnInterface) *ChartServiceClient {
	return &ChartServiceClient{cc: cc}
}

func (c *ChartServiceClient) GetChart(ctx context.Context, in *ChartRequest, opts ...grpc.CallOption) (*chart.Result, error) {
	out := new(chart.Result)
	if err := c.invoke(ctx, "GetChart", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ChartServiceClient) ListCountries(ctx context.Context, opts ...grpc.CallOption) (*chart.Countries, error) {
	out := new(chart.Countries)
	if err := c.invoke(ctx, "ListCountries", &Empty{}, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ChartServiceClient) SaveQuery(ctx context.Context, in *SaveQueryRequest, opts ...grpc.CallOption) (*SavedQuery, error) {
	out := new(SavedQuery)
	if err := c.invoke(ctx, "SaveQuery", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ChartServiceClient) LoadQuery(ctx context.Context, name string, opts ...grpc.CallOption) (*SavedQuery, error) {
	out := new(SavedQuery)
	if err := c.invoke(ctx, "LoadQuery", &QueryName{Name: name}, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ChartServiceClient) DeleteQuery(ctx context.Context, name string, opts ...grpc.CallOption) error {
	return c.invoke(ctx, "DeleteQuery", &QueryName{Name: name}, new(Empty), opts)
}

func (c *ChartServiceClient) ListQueries(ctx context.Context, opts ...grpc.CallOption) (*QueryList, error) {
	out := new(QueryList)
	if err := c.invoke(ctx, "ListQueries", &Empty{}, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ChartServiceClient) invoke(ctx context.Context, method string, in, out interface{}, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}
